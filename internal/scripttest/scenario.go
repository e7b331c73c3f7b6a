// Package scripttest drives end-to-end scenarios across LWW conflict
// resolution, reactive streams, and server sync through rsc.io/script
// scenario files, exercising a full Store rather than one package in
// isolation. Each scenario is a plain-text script under testdata/ naming
// a sequence of commands against one freshly opened Store; the Go code
// here only supplies the domain-specific commands those scripts call.
package scripttest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"rsc.io/script"

	reactivestore "github.com/opensync/reactivestore"
)

// scenario is the state one script run accumulates: the open Store plus
// whatever a script's commands stash for later commands to assert on.
type scenario struct {
	store *reactivestore.Store

	lastPK         any
	lastBulkResult *reactivestore.BulkLoadResult

	streams map[string]*reactivestore.Stream

	mu             sync.Mutex
	emissionCounts map[string]int
	lastLens       map[string]int

	uploadCalls int
	uploadFail  int // remaining calls to fail before succeeding
}

// scenarios maps a running *script.State to its scenario, since
// script.Cmd implementations only receive the State, not arbitrary
// caller-supplied context.
var scenarios sync.Map // map[*script.State]*scenario

func newScenario() *scenario {
	return &scenario{
		streams:        make(map[string]*reactivestore.Stream),
		emissionCounts: make(map[string]int),
		lastLens:       make(map[string]int),
	}
}

func scenarioFor(s *script.State) *scenario {
	v, _ := scenarios.Load(s)
	sc, _ := v.(*scenario)
	return sc
}

// schemas are the fixed table layouts the scenario scripts open against,
// named the way a script's `store-open` command selects them.
func schemaFor(name string) (*reactivestore.Schema, error) {
	b := reactivestore.NewSchemaBuilder().AddTable(reactivestore.ReservedTable())

	switch name {
	case "tasks":
		tasks, err := reactivestore.NewTable("tasks").
			AddColumn(reactivestore.Column{Name: "hours", Affinity: reactivestore.AffinityInteger, LWW: true}).
			AddColumn(reactivestore.Column{Name: "rate", Affinity: reactivestore.AffinityInteger, LWW: true}).
			Build()
		if err != nil {
			return nil, err
		}
		b = b.AddTable(tasks)
	case "users":
		users, err := reactivestore.NewTable("users").
			AddColumn(reactivestore.Column{Name: "status", Affinity: reactivestore.AffinityText}).
			AddColumn(reactivestore.Column{Name: "age", Affinity: reactivestore.AffinityInteger}).
			Build()
		if err != nil {
			return nil, err
		}
		b = b.AddTable(users)
	case "products":
		products, err := reactivestore.NewTable("products").
			AddColumn(reactivestore.Column{Name: "name", Affinity: reactivestore.AffinityText}).
			AddColumn(reactivestore.Column{Name: "price", Affinity: reactivestore.AffinityInteger}).
			Build()
		if err != nil {
			return nil, err
		}
		b = b.AddTable(products)
	default:
		return nil, errUsage("store-open", "unknown schema preset %q", name)
	}

	return b.Build()
}

func openStore(ctx context.Context, s *script.State, preset string) error {
	sc := newScenario()
	schema, err := schemaFor(preset)
	if err != nil {
		return err
	}

	dbPath := filepath.Join(s.Getwd(), preset+".db")
	config := reactivestore.DefaultConfig()
	// Keep the documented retry/backoff shape (3 retries, doubling
	// delay) but scaled down from the 2s/5min production defaults so a
	// scenario script exercising retries runs in milliseconds, not
	// minutes.
	config.ServerSync.RetryDelay = 5 * time.Millisecond
	config.ServerSync.MaxDelay = 50 * time.Millisecond
	config.ServerSync.SyncInterval = time.Hour

	opts := reactivestore.Options{
		Config: config,
		Upload: func(ctx context.Context, batch []reactivestore.PendingOperation) (bool, error) {
			sc.uploadCalls++
			if sc.uploadFail > 0 {
				sc.uploadFail--
				return false, errTransient
			}
			return true, nil
		},
	}
	store, err := reactivestore.Open(ctx, dbPath, schema, opts)
	if err != nil {
		return err
	}
	sc.store = store
	scenarios.Store(s, sc)
	return nil
}
