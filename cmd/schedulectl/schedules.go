package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trainschedule/internal/client"
	"trainschedule/internal/domain"
)

func newSchedulesCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List and manage train schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var station string
	list := &cobra.Command{
		Use:   "list",
		Short: "List schedules, optionally for one station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := g.schedules(cmd)
			if err != nil {
				return err
			}
			out, err := sc.List(cmd.Context(), station)
			if err != nil {
				return err
			}
			return printSchedules(cmd.OutOrStdout(), out)
		},
	}
	list.Flags().StringVar(&station, "station", "", "Only schedules departing from or arriving at this station ID")
	cmd.AddCommand(list)

	cmd.AddCommand(newSchedulesCreateCommand(g))

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := g.schedules(cmd)
			if err != nil {
				return err
			}
			return sc.Delete(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newSchedulesCreateCommand(g *globals) *cobra.Command {
	var (
		train, from, to  string
		departs, arrives string
		depPlatform      int
		arrPlatform      int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := time.Parse(time.RFC3339, departs)
			if err != nil {
				return fmt.Errorf("--departs: %w", err)
			}
			arr, err := time.Parse(time.RFC3339, arrives)
			if err != nil {
				return fmt.Errorf("--arrives: %w", err)
			}
			p := domain.SchedulePatch{
				TrainNumber:        &train,
				DepartureStationID: &from,
				ArrivalStationID:   &to,
				DepartureTime:      &dep,
				ArrivalTime:        &arr,
			}
			if cmd.Flags().Changed("departure-platform") {
				p.DeparturePlatform = &depPlatform
			}
			if cmd.Flags().Changed("arrival-platform") {
				p.ArrivalPlatform = &arrPlatform
			}

			sc, err := g.schedules(cmd)
			if err != nil {
				return err
			}
			s, err := sc.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printSchedules(cmd.OutOrStdout(), []domain.Schedule{*s})
		},
	}
	cmd.Flags().StringVar(&train, "train", "", "Train number")
	cmd.Flags().StringVar(&from, "from", "", "Departure station ID")
	cmd.Flags().StringVar(&to, "to", "", "Arrival station ID")
	cmd.Flags().StringVar(&departs, "departs", "", "Departure time (RFC 3339)")
	cmd.Flags().StringVar(&arrives, "arrives", "", "Arrival time (RFC 3339)")
	cmd.Flags().IntVar(&depPlatform, "departure-platform", 0, "Departure platform (1-30)")
	cmd.Flags().IntVar(&arrPlatform, "arrival-platform", 0, "Arrival platform (1-30)")
	for _, f := range []string{"train", "from", "to", "departs", "arrives"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (g *globals) schedules(cmd *cobra.Command) (*client.Schedules, error) {
	m, err := g.session(cmd)
	if err != nil {
		return nil, err
	}
	return client.NewSchedules(m.Client()), nil
}

func printSchedules(w io.Writer, list []domain.Schedule) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRAIN\tFROM\tDEPARTS\tTO\tARRIVES")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.TrainNumber,
			stationLabel(s.DepartureStation, s.DepartureStationID, s.DeparturePlatform),
			s.DepartureTime.Format(time.RFC3339),
			stationLabel(s.ArrivalStation, s.ArrivalStationID, s.ArrivalPlatform),
			s.ArrivalTime.Format(time.RFC3339))
	}
	return tw.Flush()
}

func stationLabel(st *domain.Station, id string, platform *int) string {
	label := id
	if st != nil {
		label = st.Name
	}
	if platform != nil {
		label += " (platform " + strconv.Itoa(*platform) + ")"
	}
	return label
}
