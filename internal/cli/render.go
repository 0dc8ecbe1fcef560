package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/api"
	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/syncer"
)

// printProfiles writes a table of profiles in store order.
func printProfiles(w io.Writer, ps []profile.StoredProfile) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "No cached profiles.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tCITY\tDECISION")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.FullName, p.Age, p.City, p.Decision)
	}
	_ = tw.Flush()
}

// errCodeFor maps a sync error kind to its CLI error code.
func errCodeFor(kind syncer.Kind) string {
	switch kind {
	case syncer.KindNetworkRefreshFailed:
		return ErrCodeRefresh
	case syncer.KindCacheLoadFailed:
		return ErrCodeCacheLoad
	case syncer.KindDecisionSaveFailed:
		return ErrCodeDecision
	default:
		return ErrCodeGeneric
	}
}

// outputState writes a published state. When the cycle failed, the
// profiles it left published are still printed before the error.
func outputState(f *OutputFormatter, st syncer.State, cycleErr error) error {
	var se *syncer.SyncError
	if cycleErr != nil && !errors.As(cycleErr, &se) {
		return WrapExitError(ExitFailure, "sync did not complete", cycleErr)
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: api.NewStateView(st), CycleID: st.CycleID}
		if se != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: errCodeFor(se.Kind), Message: se.Message()}
		}
		if err := f.Respond(resp); err != nil {
			return err
		}
	} else {
		printProfiles(f.Writer, st.Profiles)
		if se != nil {
			_ = f.Error(errCodeFor(se.Kind), se.Message(), se.Cause)
		}
	}

	if se != nil {
		return &ExitError{Code: ExitFailure, Message: se.Message(), Err: se.Cause, Reported: true}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
