package orchestrator

import (
	"github.com/glorpus-work/addonctl/pkg/hook"
)

// Event phases.
const (
	PhaseSyncing    = "syncing"
	PhaseDetails    = "details"
	PhaseInstalling = "installing"
	PhaseRemoving   = "removing"
	PhaseResolving  = "resolving"
	PhaseScanning   = "scanning"
	PhasePriceTable = "pricetable"
	PhaseDone       = "done"
	PhaseError      = "error"
)

// Event represents a simple progress notification.
type Event struct {
	Phase   string
	AddonID int64 // zero for events not tied to one add-on
	Msg     string
}

// Hooks carries callbacks for progress events. OnEvent is never called
// concurrently.
type Hooks struct {
	OnEvent func(Event)
}

// Options configure an Orchestrator.
type Options struct {
	// AddonDir is the add-on root installs extract into.
	AddonDir string
	// Concurrency bounds parallel installs in bulk operations.
	Concurrency int
	// Scripts runs user hook scripts; nil disables hooks.
	Scripts hook.Runner
	Hooks   Hooks
	// PriceTableURL is the Tamriel Trade Centre price table archive.
	PriceTableURL string
}

// PriceTableDir is the add-on directory the price table is unpacked into.
const PriceTableDir = "TamrielTradeCentre"

// SyncOptions control a catalog sync.
type SyncOptions struct {
	// RefreshDetails fetches detail records reported as outdated.
	RefreshDetails bool
	// PriceTable refreshes the price table after the catalog sync.
	PriceTable bool
}

// SearchLimit caps search results when the caller passes no limit.
const SearchLimit = 100
