package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/presentation/tui"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/views"
)

// Listable collections.
const (
	ListWorkflows = "workflows"
	ListInstances = "instances"
	ListGlobals   = "globals"
	ListOrphans   = "orphans"
)

// ListTargets are the accepted arguments of the list command.
var ListTargets = []string{ListWorkflows, ListInstances, ListGlobals, ListOrphans}

// RunList fetches what is needed for target once and prints it to w.
func RunList(ctx context.Context, opts Options, target string, asJSON bool, w io.Writer) error {
	client, cleanup, err := createClient(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	kinds, err := kindsFor(target)
	if err != nil {
		return err
	}
	for _, kind := range kinds {
		if err := client.Sync().RefreshCollection(ctx, kind); err != nil {
			return err
		}
	}
	return printList(client, target, asJSON, w)
}

func kindsFor(target string) ([]domain.Kind, error) {
	switch target {
	case ListWorkflows:
		return []domain.Kind{domain.KindWorkflow, domain.KindInstance}, nil
	case ListInstances:
		return []domain.Kind{domain.KindInstance}, nil
	case ListGlobals:
		return []domain.Kind{domain.KindGlobal}, nil
	case ListOrphans:
		return []domain.Kind{domain.KindWorkflow, domain.KindInstance}, nil
	}
	return nil, fmt.Errorf("unknown list target %q (want one of %v)", target, ListTargets)
}

func printList(client *pipemirror.Client, target string, asJSON bool, w io.Writer) error {
	s := client.Store()

	var data any
	switch target {
	case ListWorkflows:
		data = s.Workflows.Snapshot()
	case ListInstances:
		data = s.Instances.Snapshot()
	case ListGlobals:
		data = s.Globals.Snapshot()
	case ListOrphans:
		data = views.FindOrphans(s.Instances.Snapshot(), s.Workflows.Snapshot())
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	st := tui.NewStyler(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch v := data.(type) {
	case map[string]domain.Workflow:
		instances := s.Instances.Snapshot()
		fmt.Fprintln(tw, "UUID\tNAME\tSTATE\tINSTANCES")
		for _, key := range sortedKeys(v) {
			wf := v[key]
			n := len(views.FilterByWorkflow(instances, key))
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", key, wf.DisplayName(), st.RunState(wf.State), n)
		}
	case map[string]domain.Instance:
		fmt.Fprintln(tw, "UUID\tWORKFLOW\tSTATE\tSTEP\tNEXT")
		for _, key := range sortedKeys(v) {
			inst := v[key]
			next := "-"
			if inst.NextProcessingTime != nil {
				next = inst.NextProcessingTime.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%d\t%s\n", key, st.Faint(inst.WorkflowUUID),
				st.RunState(inst.State), inst.ProcessingStep.Procedure, inst.ProcessingStep.Index, next)
		}
	case map[string]domain.GlobalVariable:
		fmt.Fprintln(tw, "NAME\tTYPE\tVALUE")
		for _, key := range sortedKeys(v) {
			g := v[key]
			fmt.Fprintf(tw, "%s\t%s\t%s\n", key, g.Typename, g.Value)
		}
	}
	return tw.Flush()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
