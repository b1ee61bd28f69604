package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/util"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's latest scorecard, reflections and score history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsListCmd.Flags().IntP("limit", "n", 20, "maximum number of sessions (0 for all)")
	sessionsShowCmd.Flags().Bool("json", false, "print the latest turn result as JSON")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := st.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTURNS\tLEVEL\tUPDATED\tIDEA")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			s.ID, s.TurnCount, s.ValidationLevel, s.UpdatedAt.Local().Format(time.DateTime), util.TruncateString(s.IdeaText, 50))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	sess, err := st.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	latest, err := st.LatestTurn(ctx, sess.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if latest == nil {
			_, err = fmt.Fprintln(out, "null")
			return err
		}
		var pretty json.RawMessage = latest.Result
		data, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	reflections, err := st.ListReflections(ctx, sess.ID)
	if err != nil {
		return err
	}
	evolution, err := st.ListEvolution(ctx, sess.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s\n", sess.ID)
	fmt.Fprintf(out, "  idea:     %s\n", sess.IdeaText)
	fmt.Fprintf(out, "  level:    %s\n", sess.ValidationLevel)
	fmt.Fprintf(out, "  personas: %v\n", sess.Personas)
	fmt.Fprintf(out, "  turns:    %d\n", sess.TurnCount)

	card := scorecard.Empty()
	if latest != nil {
		card = latest.Scorecard
	}
	fmt.Fprintf(out, "\nScorecard (%d total, %d filled)\n", card.Total(), card.Filled())
	for _, c := range scorecard.All() {
		e := card.Get(c)
		fmt.Fprintf(out, "  %-22s %2d/%d\n", c.DisplayName(), e.Current, e.Max)
	}

	if len(reflections) > 0 {
		fmt.Fprintln(out, "\nAccepted advice")
		for _, r := range reflections {
			fmt.Fprintf(out, "  turn %d  %-14s %s (%s)\n", r.Turn, r.Persona, util.TruncateString(r.ReflectedText, 70), r.ImpactLevel())
		}
	}
	if len(evolution) > 0 {
		fmt.Fprintln(out, "\nScore history")
		for _, e := range evolution {
			line := fmt.Sprintf("  turn %d  %-22s %d → %d", e.Turn, e.Category.DisplayName(), e.From, e.To)
			if e.Reason != "" {
				line += "  " + e.Reason
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
