package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/okian/eventrank/internal/domain/diagnostic"
)

func render(w io.Writer, format string, rep diagnostic.Report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return renderTable(w, rep)
}

func renderTable(w io.Writer, rep diagnostic.Report) error {
	if !rep.Found {
		_, err := fmt.Fprintf(w, "user %q not found\n", rep.UserID)
		return err
	}

	p := rep.Profile
	fmt.Fprintf(w, "user:      %s\n", p.ID)
	fmt.Fprintf(w, "major:     %s\n", p.Major)
	fmt.Fprintf(w, "interests: %s\n", p.Interests)
	fmt.Fprintf(w, "embedding: %s\n", p.EmbeddingSource)
	fmt.Fprintf(w, "weights:   w_major=%g w_vector=%g bonus=%g\n\n", rep.Weights.Major, rep.Weights.Vector, rep.Weights.Bonus)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tEVENT\tDATE\tMAJOR\tVECTOR\tTOTAL\tSOURCE\tREASONS")
	for _, e := range rep.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\t%s\t%s\n",
			e.Rank, e.EventID, e.Date.Format("2006-01-02"),
			e.MajorScore, e.VectorScore, e.TotalScore,
			e.EmbeddingSource, strings.Join(e.Reasons, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := rep.Summary
	_, err := fmt.Fprintf(w, "\n%d candidates, %d major matches, %d vector scores degraded\n",
		s.Candidates, s.MajorMatched, s.VectorDegraded)
	return err
}
