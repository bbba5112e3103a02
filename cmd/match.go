package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/intake"
	"github.com/bentacars/salesbot/internal/match"
	"github.com/bentacars/salesbot/internal/model"
)

var (
	matchBodyType     string
	matchCity         string
	matchPayment      string
	matchBudget       string
	matchTransmission string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank the stored catalog against a complete preference set",
	Long:  "Skips intake: all five preference flags must be given. Prints the ranked cards as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		payment, ok := intake.NormalizePayment(matchPayment)
		if !ok {
			return eris.Errorf("unrecognized payment type %q (cash or financing)", matchPayment)
		}
		budget, ok := intake.ParseBudget(matchBudget)
		if !ok {
			return eris.Errorf("unparseable budget %q (e.g. 500k or 400000-450000)", matchBudget)
		}

		prefs := model.PreferenceRecord{
			BodyType:     intake.NormalizeLabel(matchBodyType),
			LocationCity: matchCity,
			PaymentType:  payment,
			Transmission: intake.NormalizeLabel(matchTransmission),
			Budget:       &budget,
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := st.ListVehicles(ctx)
		if err != nil {
			return eris.Wrap(err, "list vehicles")
		}

		result, err := match.Match(prefs, catalog)
		if err != nil {
			return eris.Wrap(err, "match")
		}

		zap.L().Info("match complete",
			zap.Int("catalog", len(catalog)),
			zap.Int("matches", len(result.TopMatches)),
		)

		encoded, err := json.MarshalIndent(result.TopMatches, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode matches")
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchBodyType, "body-type", "", "body type, e.g. sedan (required)")
	matchCmd.Flags().StringVar(&matchCity, "city", "", "buyer city (required)")
	matchCmd.Flags().StringVar(&matchPayment, "payment", "", "cash or financing (required)")
	matchCmd.Flags().StringVar(&matchBudget, "budget", "", "budget, e.g. 500k or 400000-450000 (required)")
	matchCmd.Flags().StringVar(&matchTransmission, "transmission", "", "automatic or manual (required)")
	for _, f := range []string{"body-type", "city", "payment", "budget", "transmission"} {
		_ = matchCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(matchCmd)
}
