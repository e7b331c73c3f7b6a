package scripttest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rsc.io/script"

	reactivestore "github.com/opensync/reactivestore"
)

var errTransient = fmt.Errorf("scripttest: simulated transient upload failure")

func errUsage(cmd, format string, args ...any) error {
	return fmt.Errorf("%s: %s", cmd, fmt.Sprintf(format, args...))
}

// cmd wraps a synchronous domain command: it runs to completion before
// Execute moves to the script's next line, matching every command here
// since none of them launch a background process.
func cmd(summary, args string, run func(s *script.State, args []string) error) script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: summary, Args: args},
		func(s *script.State, rawArgs ...string) (script.WaitFunc, error) {
			return nil, run(s, rawArgs)
		},
	)
}

// Engine returns the rsc.io/script engine driving the scenario files
// under testdata: the library's own default commands/conditions plus
// this package's domain-specific ones.
func Engine() *script.Engine {
	cmds := script.DefaultCmds()
	for name, c := range domainCmds() {
		cmds[name] = c
	}
	return &script.Engine{
		Cmds:  cmds,
		Conds: script.DefaultConds(),
	}
}

func domainCmds() map[string]script.Cmd {
	return map[string]script.Cmd{
		"store-open":          cmdStoreOpen(),
		"insert":              cmdInsert(),
		"update-lww-column":   cmdUpdateLWWColumn(),
		"apply-server-update": cmdApplyServerUpdate(),
		"expect-lww-column":   cmdExpectLWWColumn(),
		"expect-lww-row":      cmdExpectLWWRow(),
		"expect-pending":      cmdExpectPending(),
		"update-column":       cmdUpdateColumn(),
		"watch":               cmdWatch(),
		"expect-emissions":    cmdExpectEmissions(),
		"expect-last-len":     cmdExpectLastLen(),
		"bulk-load":           cmdBulkLoad(),
		"bulk-load-n":         cmdBulkLoadN(),
		"expect-bulk-updated": cmdExpectBulkUpdated(),
		"sync-fail-next":      cmdSyncFailNext(),
		"sync-now":            cmdSyncNow(),
		"expect-upload-calls": cmdExpectUploadCalls(),
	}
}

func cmdStoreOpen() script.Cmd {
	return cmd("open a Store against a fixed schema preset", "preset", func(s *script.State, args []string) error {
		if len(args) != 1 {
			return errUsage("store-open", "want exactly one preset name, got %v", args)
		}
		return openStore(s.Context(), s, args[0])
	})
}

func cmdInsert() script.Cmd {
	return cmd("insert a row, remembering its systemId as the last primary key", "table col=value ...", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 1 {
			return errUsage("insert", "usage: insert table col=value ...")
		}
		table := args[0]
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		rowID, err := sc.store.Access.Insert(s.Context(), table, values)
		if err != nil {
			return err
		}
		rows, err := sc.store.Access.GetAllWhere(s.Context(), table, reactivestore.QueryOptions{Where: "rowid = ?", Args: []any{rowID}})
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("insert: expected exactly 1 row for rowid %d, got %d", rowID, len(rows))
		}
		sc.lastPK = rows[0]["systemId"]
		return nil
	})
}

func cmdUpdateLWWColumn() script.Cmd {
	return cmd("call update-lww-column against the last inserted row", "table column value [ts]", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 3 {
			return errUsage("update-lww-column", "usage: update-lww-column table column value [ts]")
		}
		value, err := parseScalar(args[2])
		if err != nil {
			return err
		}
		opts := reactivestore.LWWWriteOptions{}
		if len(args) >= 4 {
			opts.ExplicitTimestamp = formatTimestamp(args[3])
		}
		_, err = sc.store.Access.UpdateLWWColumn(s.Context(), args[0], sc.lastPK, args[1], value, opts)
		return err
	})
}

func cmdApplyServerUpdate() script.Cmd {
	return cmd("apply a server-originated column snapshot to the last inserted row", "table ts col=value ...", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 2 {
			return errUsage("apply-server-update", "usage: apply-server-update table ts col=value ...")
		}
		values, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		_, err = sc.store.Access.ApplyServerUpdate(s.Context(), args[0], sc.lastPK, values, formatTimestamp(args[1]))
		return err
	})
}

func cmdExpectLWWColumn() script.Cmd {
	return cmd("assert the winning value of an lww column on the last inserted row", "table column want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 3 {
			return errUsage("expect-lww-column", "usage: expect-lww-column table column want")
		}
		got, _, err := sc.store.Access.GetLWWColumnValue(s.Context(), args[0], sc.lastPK, args[1])
		if err != nil {
			return err
		}
		return expectScalarEqual("expect-lww-column", got.Value.Any(), args[2])
	})
}

func cmdExpectLWWRow() script.Cmd {
	return cmd("assert a column of get-lww-row on the last inserted row", "table column want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 3 {
			return errUsage("expect-lww-row", "usage: expect-lww-row table column want")
		}
		row, _, err := sc.store.Access.GetLWWRow(s.Context(), args[0], sc.lastPK)
		if err != nil {
			return err
		}
		return expectScalarEqual("expect-lww-row", row[args[1]], args[2])
	})
}

func cmdExpectPending() script.Cmd {
	return cmd("assert the number of unsynced pending operations", "want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 1 {
			return errUsage("expect-pending", "usage: expect-pending want")
		}
		want, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		got := len(sc.store.Access.Pending.Unsynced())
		if got != want {
			return fmt.Errorf("expect-pending: want %d, got %d", want, got)
		}
		return nil
	})
}

func cmdUpdateColumn() script.Cmd {
	return cmd("update a plain (non-lww) column on the last inserted row", "table col=value ...", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 2 {
			return errUsage("update-column", "usage: update-column table col=value ...")
		}
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		return sc.store.Access.UpdateByPrimaryKey(s.Context(), args[0], sc.lastPK, values)
	})
}

// cmdWatch creates a named stream whose generator re-queries table
// (optionally restricted by an equality filter given as col=value, to
// sidestep any quoting the script tokenizer might do to a literal SQL
// where-clause), recording how many times it has run and the row count
// of its latest result so scenario scripts can assert on both.
func cmdWatch() script.Cmd {
	return cmd("create and subscribe a named stream over a table, optionally filtered by col=value", "name table [col=value]", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 2 {
			return errUsage("watch", "usage: watch name table [col=value]")
		}
		name, table := args[0], args[1]
		spec := reactivestore.QuerySpec{Table: table}
		where := ""
		if len(args) >= 3 {
			col, val, ok := strings.Cut(args[2], "=")
			if !ok {
				return errUsage("watch", "expected col=value filter, got %q", args[2])
			}
			if _, err := strconv.ParseInt(val, 10, 64); err == nil {
				where = fmt.Sprintf("%s = %s", col, val)
			} else {
				where = fmt.Sprintf("%s = '%s'", col, val)
			}
			spec.Where = where
			spec.Columns = []string{col}
		}

		gen := func(ctx context.Context) (any, error) {
			rows, err := sc.store.Access.GetAllWhere(ctx, table, reactivestore.QueryOptions{Where: where})
			sc.mu.Lock()
			sc.emissionCounts[name]++
			sc.lastLens[name] = len(rows)
			sc.mu.Unlock()
			return rows, err
		}

		stream, err := sc.store.Reactive.CreateStream(s.Context(), name, gen, spec, reactivestore.DefaultStreamOptions())
		if err != nil {
			return err
		}
		stream.Subscribe()
		sc.streams[name] = stream
		return nil
	})
}

func cmdExpectEmissions() script.Cmd {
	return cmd("assert the total number of times a watched stream's generator has run", "name want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 2 {
			return errUsage("expect-emissions", "usage: expect-emissions name want")
		}
		want, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		sc.mu.Lock()
		got := sc.emissionCounts[args[0]]
		sc.mu.Unlock()
		if got != want {
			return fmt.Errorf("expect-emissions %s: want %d, got %d", args[0], want, got)
		}
		return nil
	})
}

func cmdExpectLastLen() script.Cmd {
	return cmd("assert the row count of a watched stream's most recent result", "name want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 2 {
			return errUsage("expect-last-len", "usage: expect-last-len name want")
		}
		want, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		sc.mu.Lock()
		got := sc.lastLens[args[0]]
		sc.mu.Unlock()
		if got != want {
			return fmt.Errorf("expect-last-len %s: want %d, got %d", args[0], want, got)
		}
		return nil
	})
}

// cmdBulkLoad drives lww.DataAccess.BulkLoad for one row: col=value
// assignments, each optionally suffixed @ts to attach an lww timestamp
// (e.g. hours=7@50). systemId=<...> in the assignment list targets an
// existing row for an upsert.
func cmdBulkLoad() script.Cmd {
	return cmd("bulk-load one row, upserting by systemId if present", "table upsert=true|false is-from-server=true|false col=value[@ts] ...", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) < 3 {
			return errUsage("bulk-load", "usage: bulk-load table upsert=.. is-from-server=.. col=value[@ts] ...")
		}
		table := args[0]
		opts := reactivestore.DefaultBulkLoadOptions()
		values := map[string]any{}
		timestamps := map[string]string{}
		for _, a := range args[1:] {
			k, v, ok := strings.Cut(a, "=")
			if !ok {
				return fmt.Errorf("bulk-load: expected key=value, got %q", a)
			}
			switch k {
			case "upsert":
				opts.UpsertMode = v == "true"
			case "is-from-server":
				opts.IsFromServer = v == "true"
			default:
				val, ts, hasTS := strings.Cut(v, "@")
				scalar, err := parseScalar(val)
				if err != nil {
					return err
				}
				values[k] = scalar
				if hasTS {
					timestamps[k] = formatTimestamp(ts)
				}
			}
		}
		if opts.UpsertMode {
			if _, ok := values["systemId"]; !ok && sc.lastPK != nil {
				values["systemId"] = sc.lastPK
			}
		}
		result, err := sc.store.Access.BulkLoad(s.Context(), table, []reactivestore.BulkRow{
			{Values: values, ColumnTimestamps: timestamps, IsFromServer: opts.IsFromServer},
		}, opts)
		if err != nil {
			return err
		}
		sc.lastBulkResult = result
		return nil
	})
}

// cmdBulkLoadN bulk-loads n freshly generated rows into table in one
// call, for exercising a stream's single-coalesced-emission behavior
// over a large batch rather than one row at a time.
func cmdBulkLoadN() script.Cmd {
	return cmd("bulk-load n freshly generated rows into table", "table n", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 2 {
			return errUsage("bulk-load-n", "usage: bulk-load-n table n")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		rows := make([]reactivestore.BulkRow, n)
		for i := 0; i < n; i++ {
			rows[i] = reactivestore.BulkRow{Values: map[string]any{
				"name":  fmt.Sprintf("product-%d", i),
				"price": int64(i),
			}}
		}
		result, err := sc.store.Access.BulkLoad(s.Context(), args[0], rows, reactivestore.DefaultBulkLoadOptions())
		if err != nil {
			return err
		}
		sc.lastBulkResult = result
		return nil
	})
}

func cmdExpectBulkUpdated() script.Cmd {
	return cmd("assert the Updated count of the last bulk-load call", "want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 1 || sc.lastBulkResult == nil {
			return errUsage("expect-bulk-updated", "no bulk-load result recorded")
		}
		want, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		if sc.lastBulkResult.Updated != want {
			return fmt.Errorf("expect-bulk-updated: want %d, got %d", want, sc.lastBulkResult.Updated)
		}
		return nil
	})
}

func cmdSyncFailNext() script.Cmd {
	return cmd("make the next n upload calls fail transiently", "n", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 1 {
			return errUsage("sync-fail-next", "usage: sync-fail-next n")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		sc.uploadFail = n
		return nil
	})
}

func cmdSyncNow() script.Cmd {
	return cmd("run SyncNow and assert success", "", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil {
			return errUsage("sync-now", "no open store")
		}
		res, err := sc.store.Sync.SyncNow(s.Context())
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("sync-now: want success, got failed=%v", res.Failed)
		}
		return nil
	})
}

func cmdExpectUploadCalls() script.Cmd {
	return cmd("assert the number of upload callback invocations", "want", func(s *script.State, args []string) error {
		sc := scenarioFor(s)
		if sc == nil || len(args) != 1 {
			return errUsage("expect-upload-calls", "usage: expect-upload-calls want")
		}
		want, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		if sc.uploadCalls != want {
			return fmt.Errorf("expect-upload-calls: want %d, got %d", want, sc.uploadCalls)
		}
		return nil
	})
}

func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("expected col=value, got %q", a)
		}
		val, err := parseScalar(v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func parseScalar(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return s, nil
}

func expectScalarEqual(cmdName string, got any, want string) error {
	wantVal, err := parseScalar(want)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != fmt.Sprint(wantVal) {
		return fmt.Errorf("%s: want %v, got %v", cmdName, wantVal, got)
	}
	return nil
}

// formatTimestamp renders a small decimal "logical time" used by a
// scenario script (e.g. ts=2000) as an HLC-shaped stamp comparable by
// internal/lww.After, so scripts can write readable small integers
// instead of real wall-clock HLC strings.
func formatTimestamp(raw string) string {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%020d.%010d", n, 0)
}
