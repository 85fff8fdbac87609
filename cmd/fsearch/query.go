package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PhucNguyen204/fluentsearch/internal/records"
	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
	"github.com/PhucNguyen204/fluentsearch/pkg/levenshtein"
	"github.com/PhucNguyen204/fluentsearch/pkg/querydef"
)

type adhocFlags struct {
	fields     []string
	contains   []string
	startsWith []string
	equals     []string
	distanceOf []string
	distanceTo []string
	limit      int
}

// definition builds a one-off query from flags; ok is false when no
// search flag was given.
func (f adhocFlags) definition() (querydef.Definition, bool) {
	def := querydef.Definition{ID: "adhoc", Fields: f.fields, Limit: f.limit}
	if len(f.contains) > 0 {
		def.Stages = append(def.Stages, querydef.Stage{Method: expr.MethodContains, Terms: f.contains})
	}
	if len(f.startsWith) > 0 {
		def.Stages = append(def.Stages, querydef.Stage{Method: expr.MethodStartsWith, Terms: f.startsWith})
	}
	if len(f.equals) > 0 {
		def.Stages = append(def.Stages, querydef.Stage{Method: expr.MethodEquals, Terms: f.equals})
	}
	if len(f.distanceOf) > 0 || len(f.distanceTo) > 0 {
		ds := &querydef.DistanceSpec{Of: f.distanceOf}
		for _, t := range f.distanceTo {
			ds.To = append(ds.To, querydef.Target{Text: &t})
		}
		def.Distance = ds
	}
	ok := len(def.Stages) > 0 || def.Distance != nil || len(f.fields) > 0
	return def, ok
}

func newQueryCmd(v *viper.Viper) *cobra.Command {
	var f adhocFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run query definitions, or a search given by flags, against a record set",
		Example: `  fsearch query --records data.json --queries queries/
  fsearch query --records data.ndjson --field name --contains ann --starts-with a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("records")
			if path == "" {
				return errors.New("no records given (--records or FSEARCH_RECORDS)")
			}
			recs, err := records.Load(path)
			if err != nil {
				return err
			}

			var defs []querydef.Definition
			if def, ok := f.definition(); ok {
				defs = append(defs, def)
			} else if qp := v.GetString("queries"); qp != "" {
				if defs, err = querydef.Load(qp); err != nil {
					return err
				}
			} else {
				return errors.New("nothing to run: give --queries or search flags")
			}

			res, err := querydef.RunBatch(cmd.Context(), defs, recs, v.GetInt("workers"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringSliceVar(&f.fields, "field", nil, "field to search (repeatable; default all string fields)")
	cmd.Flags().StringArrayVar(&f.contains, "contains", nil, "keep records where a field contains a term")
	cmd.Flags().StringArrayVar(&f.startsWith, "starts-with", nil, "keep records where a field starts with a term")
	cmd.Flags().StringArrayVar(&f.equals, "equals", nil, "keep records where a field equals a term")
	cmd.Flags().StringSliceVar(&f.distanceOf, "distance-of", nil, "fields scored by edit distance")
	cmd.Flags().StringArrayVar(&f.distanceTo, "distance-to", nil, "reference strings for --distance-of")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum matches per query (0 = all)")
	return cmd
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance A B",
		Short: "Print the Levenshtein distance and similarity of two strings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := levenshtein.Distance(args[0], args[1])
			sim := strconv.FormatFloat(levenshtein.Similarity(args[0], args[1]), 'f', 3, 64)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "distance=%d similarity=%s\n", d, sim)
			return err
		},
	}
}
