package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/spf13/cobra"
)

var (
	resIn       pricing.ResidentialInputs
	resWindows  pricing.WindowCounts
	comIn       pricing.CommercialInputs
	comPanels   int
	comHeight   string
	comFreq     string
	quoteAccess string
	quoteFreq   string
	quoteJSON   bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Calculate an estimate from the command line",
}

var quoteResCmd = &cobra.Command{
	Use:   "res",
	Short: "Residential estimate",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := resIn
		w := resWindows
		in.Windows = &w
		in.Access = pricing.Access(quoteAccess)
		in.Frequency = pricing.Frequency(quoteFreq)
		return runQuote(cmd.OutOrStdout(), in)
	},
}

var quoteComCmd = &cobra.Command{
	Use:   "com",
	Short: "Commercial estimate",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := comIn
		if cmd.Flags().Changed("panels") {
			p := comPanels
			in.Panels = &p
		}
		in.HeightTier = pricing.HeightTier(comHeight)
		in.Frequency = pricing.CommercialFrequency(comFreq)
		return runQuote(cmd.OutOrStdout(), in)
	},
}

// runQuote prices against the configured rate document without touching the
// database, so it works offline.
func runQuote(out io.Writer, in pricing.Inputs) error {
	doc, _, err := rates.Resolve(cfg.Rates.File)
	if err != nil {
		return err
	}
	rt, err := doc.Table()
	if err != nil {
		return err
	}
	engine, err := pricing.NewEngine(rt)
	if err != nil {
		return err
	}
	res, err := engine.Calculate(in.Variant(), in)
	if err != nil {
		return err
	}

	if quoteJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "Estimate: $%d - $%d\n", res.PriceMin, res.PriceMax)
	fmt.Fprintf(out, "  base    $%d\n  add-ons $%d\n  travel  $%d\n  total   $%d\n",
		res.Breakdown.Base, res.Breakdown.AddOns, res.Breakdown.Travel, res.Breakdown.Total)
	return nil
}

func init() {
	rf := quoteResCmd.Flags()
	rf.IntVar(&resWindows.Ground, "ground", 0, "ground floor windows")
	rf.IntVar(&resWindows.Second, "second", 0, "second floor windows")
	rf.IntVar(&resWindows.Third, "third", 0, "third floor windows")
	rf.BoolVar(&resIn.AddOns.Screens, "screens", false, "clean screens")
	rf.BoolVar(&resIn.AddOns.TracksSills, "tracks-sills", false, "clean tracks and sills")
	rf.BoolVar(&resIn.AddOns.HardWater, "hard-water", false, "hard water stain removal")
	rf.IntVar(&resIn.AddOns.Skylight, "skylights", 0, "number of skylights")
	rf.StringVar(&quoteAccess, "access", string(pricing.AccessNormal), "access: normal or hard")
	rf.StringVar(&quoteFreq, "frequency", string(pricing.FrequencyOneTime), "one_time, quarterly or biannual")
	rf.Float64Var(&resIn.TravelMiles, "miles", 0, "travel distance in miles")

	cf := quoteComCmd.Flags()
	cf.IntVar(&comPanels, "panels", 0, "number of panels")
	cf.StringVar(&comHeight, "height", "", "height tier: ground, low, medium or high")
	cf.StringVar(&comFreq, "frequency", "", "weekly, bi_weekly or monthly")
	cf.Float64Var(&comIn.TravelMiles, "miles", 0, "travel distance in miles")

	quoteCmd.PersistentFlags().BoolVar(&quoteJSON, "json", false, "print the result as JSON")
	quoteCmd.AddCommand(quoteResCmd, quoteComCmd)
	rootCmd.AddCommand(quoteCmd)
}
