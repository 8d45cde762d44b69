package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/orchestrator"
)

type resolveFlags struct {
	user string
	json bool
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "user whose allowance is charged (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the resolved profile as JSON")
}

func newIdentifyCmd(configPath *string) *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Identify the plant in an image (path, data: URI or URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(*configPath, flags, models.IdentificationRequest{
				ImageRef: args[0],
				Feature:  models.FeatureIdentify,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDiagnoseCmd(configPath *string) *cobra.Command {
	var (
		flags resolveFlags
		hint  string
	)
	cmd := &cobra.Command{
		Use:   "diagnose <image>",
		Short: "Assess the health of the plant in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(*configPath, flags, models.IdentificationRequest{
				ImageRef:    args[0],
				Feature:     models.FeatureDiagnose,
				ContextText: hint,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&hint, "hint", "", "symptoms to focus on, e.g. \"yellow lower leaves\"")
	return cmd
}

func newChatCmd(configPath *string) *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "chat <image> <question...>",
		Short: "Ask a question about the plant in an image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(*configPath, flags, models.IdentificationRequest{
				ImageRef:    args[0],
				Feature:     models.FeatureChat,
				ContextText: strings.Join(args[1:], " "),
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runResolve(configPath string, flags resolveFlags, req models.IdentificationRequest) error {
	ctx := context.Background()
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	user := flags.user
	if user == "" {
		user = a.cfg.Usage.DefaultUser
	}
	res, err := a.client.Do(ctx, user, req)
	if err != nil {
		return err
	}

	if flags.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResolved(os.Stdout, res)
}

func printResolved(out io.Writer, res orchestrator.Resolved) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p := res.Profile
	switch {
	case p.Plant != nil:
		fmt.Fprintf(w, "PLANT\t%s\n", p.Plant.Name)
		fmt.Fprintf(w, "SCIENTIFIC NAME\t%s\n", p.Plant.ScientificName)
		fmt.Fprintf(w, "FAMILY\t%s\n", p.Plant.Family)
		fmt.Fprintf(w, "CONFIDENCE\t%d%%\n", p.Plant.Confidence)
		fmt.Fprintf(w, "TOXICITY\t%s\n", p.Plant.Toxicity)
		fmt.Fprintf(w, "DIFFICULTY\t%s\n", p.Plant.Difficulty)
		fmt.Fprintf(w, "GROWTH\t%s\n", p.Plant.GrowthRate)
		fmt.Fprintf(w, "LIGHT\t%s\n", p.Plant.Light)
		fmt.Fprintf(w, "WATER\t%s\n", p.Plant.Water)
		fmt.Fprintf(w, "HUMIDITY\t%s\n", p.Plant.Humidity)
		fmt.Fprintf(w, "TEMPERATURE\t%s\n", p.Plant.Temperature)
		fmt.Fprintf(w, "DESCRIPTION\t%s\n", p.Plant.Description)
		printList(w, "CARE TIPS", p.Plant.CareTips)
		if p.Plant.Notes != "" {
			fmt.Fprintf(w, "NOTES\t%s\n", p.Plant.Notes)
		}
	case p.Diagnosis != nil:
		fmt.Fprintf(w, "CONDITION\t%s\n", p.Diagnosis.Condition)
		fmt.Fprintf(w, "STATUS\t%s\n", p.Diagnosis.CareStatus)
		fmt.Fprintf(w, "SEVERITY\t%s\n", p.Diagnosis.Severity)
		fmt.Fprintf(w, "URGENCY\t%s\n", p.Diagnosis.Urgency)
		fmt.Fprintf(w, "CONFIDENCE\t%d%%\n", p.Diagnosis.Confidence)
		fmt.Fprintf(w, "SUMMARY\t%s\n", p.Diagnosis.Summary)
		printList(w, "ISSUES", p.Diagnosis.Issues)
		printList(w, "RECOMMENDATIONS", p.Diagnosis.Recommendations)
		if p.Diagnosis.Notes != "" {
			fmt.Fprintf(w, "NOTES\t%s\n", p.Diagnosis.Notes)
		}
	case p.Chat != nil:
		fmt.Fprintf(w, "ANSWER\t%s\n", p.Chat.Reply)
		printList(w, "SUGGESTIONS", p.Chat.Suggestions)
	}

	source := string(res.Source)
	if res.Reason != "" {
		source += " (" + res.Reason + ")"
	}
	fmt.Fprintf(w, "SOURCE\t%s\n", source)
	if res.RequestID != "" {
		fmt.Fprintf(w, "REQUEST ID\t%s\n", res.RequestID)
	}
	return w.Flush()
}

func printList(w io.Writer, title string, items []string) {
	for i, item := range items {
		if i == 0 {
			fmt.Fprintf(w, "%s\t- %s\n", title, item)
			continue
		}
		fmt.Fprintf(w, "\t- %s\n", item)
	}
}
