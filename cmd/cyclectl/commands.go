package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/cadence/internal/domain/model"
)

func (c *cli) generateCmd() *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create the next three monthly cycles",
		Long: `Creates the next run of three monthly cycles. Every third month in the
overall sequence is a 360 month. Without --start the run continues after the
latest existing cycle; an interrupted run is resumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p *model.Period
			if start != "" {
				parsed, err := model.ParsePeriod(start)
				if err != nil {
					return err
				}
				p = &parsed
			}
			sum, err := c.svc.GenerateNextCycle(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First month of the run (YYYY-MM)")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	var cycleID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report broken pairs and orphaned records of a cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.svc.AuditPairLinking(cmd.Context(), cycleID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "Cycle id (YYYY-MM)")
	_ = cmd.MarkFlagRequired("cycle")
	return cmd
}

func (c *cli) pairingsCmd() *cobra.Command {
	var cycleID, participantID string

	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "Resolve the pairings a participant appears in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pairs, err := c.svc.ResolvePairingsForParticipant(cmd.Context(), cycleID, participantID)
			if err != nil {
				return err
			}
			if pairs == nil {
				pairs = []model.Pairing{}
			}
			return printJSON(cmd.OutOrStdout(), pairs)
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "Cycle id (YYYY-MM)")
	cmd.Flags().StringVar(&participantID, "participant", "", "Participant id")
	_ = cmd.MarkFlagRequired("cycle")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func (c *cli) closeCmd() *cobra.Command {
	var cycleID string

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a cycle to further submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.svc.CloseCycle(cmd.Context(), cycleID); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cycle %s closed\n", cycleID)
			return err
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "Cycle id (YYYY-MM)")
	_ = cmd.MarkFlagRequired("cycle")
	return cmd
}

// participantsFile is the YAML layout accepted by import-participants.
type participantsFile struct {
	Participants []model.Participant `yaml:"participants"`
}

func (c *cli) importParticipantsCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "import-participants",
		Short: "Load participants from a YAML file",
		Example: `  participants:
    - id: m1
      name: Mara
      layer: leadership
      pillar: platform
      reports: [r1]
    - id: r1
      name: Ravi
      layer: contributor
      managers: [m1]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var f participantsFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			if err := c.svc.ImportParticipants(cmd.Context(), f.Participants); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d participants\n", len(f.Participants))
			return err
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "YAML file with a participants list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// legacyResult summarizes an import-legacy run.
type legacyResult struct {
	Read     int      `json:"read"`
	Written  int      `json:"written"`
	Rejected []string `json:"rejected"`
}

func (c *cli) importLegacyCmd() *cobra.Command {
	var (
		path   string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Normalize and load legacy evaluation records from a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var docs []map[string]any
			if err := json.Unmarshal(raw, &docs); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			res := legacyResult{Read: len(docs), Rejected: []string{}}
			evs := make([]model.Evaluation, 0, len(docs))
			for i, d := range docs {
				ev, err := model.NormalizeLegacyEvaluation(d)
				if err != nil {
					if strict || !errors.Is(err, model.ErrLegacyRecord) {
						return fmt.Errorf("record %d: %w", i, err)
					}
					res.Rejected = append(res.Rejected, fmt.Sprintf("record %d: %v", i, err))
					continue
				}
				evs = append(evs, ev)
			}
			res.Written, err = c.svc.ImportEvaluations(cmd.Context(), evs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "JSON file holding an array of legacy records")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on the first unusable record instead of skipping it")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
