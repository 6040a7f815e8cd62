package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trainschedule/internal/client"
	"trainschedule/internal/domain"
)

func newStationsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stations",
		Short: "List and manage stations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := g.stations(cmd)
			if err != nil {
				return err
			}
			list, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			return printStations(cmd.OutOrStdout(), list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search QUERY",
		Short: "Find stations by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := g.stations(cmd)
			if err != nil {
				return err
			}
			list, err := st.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStations(cmd.OutOrStdout(), list)
		},
	})

	cmd.AddCommand(newStationsCreateCommand(g))

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a station not used by any schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := g.stations(cmd)
			if err != nil {
				return err
			}
			return st.Delete(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newStationsCreateCommand(g *globals) *cobra.Command {
	var name, city string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := g.stations(cmd)
			if err != nil {
				return err
			}
			s, err := st.Create(cmd.Context(), name, city)
			if err != nil {
				return err
			}
			return printStations(cmd.OutOrStdout(), []domain.Station{*s})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Station name")
	cmd.Flags().StringVar(&city, "city", "", "City the station is in")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func (g *globals) stations(cmd *cobra.Command) (*client.Stations, error) {
	m, err := g.session(cmd)
	if err != nil {
		return nil, err
	}
	return client.NewStations(m.Client()), nil
}

func printStations(w io.Writer, list []domain.Station) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCITY")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.City)
	}
	return tw.Flush()
}
