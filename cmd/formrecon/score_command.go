package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rpattn/formrecon/internal/identity"
)

func newScoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "score <name> <name>",
		Short:       "Show how two filer names normalise and how similar they score",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, arg := range args {
				n := identity.Normalize(arg)
				rows = append(rows, []string{arg, n.Display, n.Key, yesNo(n.Series)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Display", "Key", "Series"}, rows, nil, nil))

			score := identity.Similarity(args[0], args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "similarity: %s (match: %s, threshold %.2f)\n",
				strconv.FormatFloat(score, 'f', 2, 64),
				yesNo(score >= identity.MatchThreshold),
				identity.MatchThreshold,
			)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
