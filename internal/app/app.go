// Package app wires the scanner, ledger, triangulation engine, storage and
// operator API into one node process.
package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/7aylabs/popchain/internal/adapters/inherent"
	"github.com/7aylabs/popchain/internal/adapters/scanner"
	"github.com/7aylabs/popchain/internal/adapters/storage"
	"github.com/7aylabs/popchain/internal/adapters/web"
	"github.com/7aylabs/popchain/internal/config"
	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/core/services/ledger"
	"github.com/7aylabs/popchain/internal/core/services/triangulation"
	"github.com/7aylabs/popchain/internal/crypto"
	"github.com/7aylabs/popchain/internal/telemetry"
)

// nodeAccount is the chain account of this node's own reporter.
const nodeAccount domain.AccountID = 0

// Application is the facade over the whole pipeline.
type Application struct {
	Config    *config.Config
	Buffer    *scanner.Buffer
	Runner    *scanner.Runner
	Provider  *inherent.Provider
	Ledger    *ledger.Ledger
	Engine    *triangulation.Engine
	Store     *storage.SQLiteAdapter
	WebServer *web.Server

	mock        *scanner.MockScanner
	reporterID  domain.ReporterID
	blockNumber uint64
	nonceSeq    uint64
	secret      [32]byte

	// Opening material for the newest unrevealed commitment.
	prevBlock uint64
	prevRoot  crypto.H256
	prevNonce [32]byte
}

// New bootstraps all components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}
	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.Store = store

	app.Engine = triangulation.NewEngine(triangulation.DefaultParams(), triangulation.DefaultConfig())
	app.Buffer = scanner.NewBuffer()

	position := domain.Position{
		X: app.Config.PositionX,
		Y: app.Config.PositionY,
		Z: app.Config.PositionZ,
	}

	scanCfg := scanner.Config{
		ScanIntervalSecs:   app.Config.ScanIntervalSecs,
		WifiEnabled:        app.Config.WifiEnabled,
		BluetoothEnabled:   app.Config.BluetoothEnabled,
		MaxDevicesPerBlock: app.Config.MaxDevicesPerBlock,
		ReporterPosition:   position,
		BtScanDurationSecs: app.Config.BtScanDurationSecs,
		WifiInterface:      app.Config.WifiInterface,
	}

	if app.Config.MockMode {
		log.Println("Mock mode active: virtualizing the radio environment")
		mockCfg := scanner.DefaultMockConfig()
		mockCfg.Seed = app.Config.MockSeed
		mockCfg.Position = position
		app.mock = scanner.NewMockScanner(mockCfg)
		app.Runner = scanner.NewMockRunner(scanCfg, app.Buffer, app.mock)
	} else {
		app.Runner = scanner.NewRunner(scanCfg, app.Buffer)
	}

	app.Provider = inherent.NewProvider(app.Buffer, position, app.Config.MaxDevicesPerBlock)

	wsManager := web.NewWSManager()
	app.Ledger = ledger.New(ledger.WithEventSink(wsManager))
	app.Engine.SetEventSink(wsManager)
	app.WebServer = web.NewServer(app.Config.Addr, app.Engine, app.Ledger)
	app.WebServer.WSManager = wsManager

	// The node's own reporter: readings extracted from the inherent are
	// attributed to it.
	reporterID, err := app.Engine.RegisterReporter(app.chainCtx(), nodeAccount, position)
	if err != nil {
		return fmt.Errorf("failed to register node reporter: %w", err)
	}
	app.reporterID = reporterID

	// Per-process secret for nullifier derivation.
	binary.LittleEndian.PutUint64(app.secret[:8], uint64(time.Now().UnixNano()))
	copy(app.secret[8:], []byte("popchain-node-secret"))

	if err := app.restoreState(); err != nil {
		log.Printf("Warning: state restore incomplete: %v", err)
	}

	return nil
}

// restoreState surfaces what previous runs persisted. Live engine state is
// rebuilt from fresh readings; storage remains the durable record.
func (app *Application) restoreState() error {
	devices, err := app.Store.ListTrackedDevices(context.Background())
	if err != nil {
		return err
	}
	if len(devices) > 0 {
		slog.Info("restored tracked devices from storage", "count", len(devices))
	}
	return nil
}

func (app *Application) chainCtx() ports.Ctx {
	var blockHash crypto.H256
	binary.LittleEndian.PutUint64(blockHash[:8], app.blockNumber)
	return ports.Ctx{
		BlockNumber: app.blockNumber,
		BlockHash:   crypto.HashWithDomain(crypto.DomainEpoch, blockHash[:]),
		EpochID:     app.blockNumber / 100,
	}
}

// Run starts the scanner loop, block production loop and web server, and
// blocks until the context is cancelled or a component fails.
func (app *Application) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go app.Runner.Run(ctx)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	go app.blockLoop(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// blockLoop emulates the host chain's block cadence: each tick imports one
// block whose body carries the current scan inherent.
func (app *Application) blockLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(app.Config.BlockTimeSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.importBlock(ctx)
		}
	}
}

func (app *Application) importBlock(ctx context.Context) {
	app.blockNumber++
	chainCtx := app.chainCtx()

	identifier, payload, err := app.Provider.ProvideEncoded()
	if err != nil {
		slog.Warn("inherent encoding failed", "error", err)
		return
	}

	if data := inherent.Extract(identifier, payload); data != nil {
		app.applyInherent(ctx, chainCtx, data)
	}

	app.Engine.OnBlock(chainCtx)
	if expired := app.Ledger.ExpireStale(chainCtx); expired > 0 {
		slog.Debug("expired stale commitments", "count", expired)
	}

	if app.mock != nil {
		app.driveMockCommitReveal(ctx, chainCtx)
	}
}

// applyInherent feeds the block-body scan payload through the on-chain
// paths: one signal report per device, then the commit for this block and
// a nullifier consumption binding the batch to the epoch.
func (app *Application) applyInherent(ctx context.Context, chainCtx ports.Ctx, data *domain.DeviceScanInherentData) {
	leaves := make([]crypto.H256, 0, len(data.Devices))
	for _, device := range data.Devices {
		freq := uint16(0)
		if device.FrequencyMHz != nil {
			freq = *device.FrequencyMHz
		}
		err := app.Engine.ReportSignal(chainCtx, nodeAccount, app.reporterID, device.MacHash, device.RSSI, device.SignalType, freq)
		if err != nil {
			slog.Warn("signal report rejected", "error", err, "device", device.MacHash.Hex())
			continue
		}
		leaves = append(leaves, device.MacHash)

		if device, ok := app.Engine.TrackedDevice(device.MacHash); ok {
			if err := app.Store.SaveTrackedDevice(ctx, device); err != nil {
				slog.Warn("device persist failed", "error", err)
			}
		}
	}
	if len(leaves) == 0 {
		return
	}

	merkleRoot := crypto.StateRootFromLeaves(leaves)
	app.nonceSeq++
	var nonce [32]byte
	binary.LittleEndian.PutUint64(nonce[:8], app.nonceSeq)
	copy(nonce[8:], app.secret[:24])

	commitment := crypto.CommitScan(merkleRoot, nonce, chainCtx.BlockNumber)
	if err := app.Ledger.Commit(chainCtx, app.reporterID, commitment, uint8(min(len(leaves), 255))); err != nil {
		slog.Warn("scan commit rejected", "error", err)
		return
	}
	if err := app.Store.SaveCommitment(ctx, app.reporterID, chainCtx.BlockNumber, commitment, uint8(min(len(leaves), 255))); err != nil {
		slog.Warn("commitment persist failed", "error", err)
	}

	nullifier := crypto.DeriveNullifier(app.secret, chainCtx.EpochID, app.nonceSeq)
	if err := app.Ledger.ConsumeNullifier(nullifier); err != nil {
		slog.Warn("nullifier rejected", "error", err)
		return
	}
	if err := app.Store.InsertNullifier(ctx, nullifier.Hash()); err != nil && err != domain.ErrDuplicatePresence {
		slog.Warn("nullifier persist failed", "error", err)
	}

	// Open the previous commitment now that a newer one anchors the chain,
	// then remember this block's opening material.
	app.revealPrevious(ctx, chainCtx)
	app.prevBlock = chainCtx.BlockNumber
	app.prevRoot = merkleRoot
	app.prevNonce = nonce
}

func (app *Application) revealPrevious(ctx context.Context, chainCtx ports.Ctx) {
	if app.prevBlock == 0 {
		return
	}
	if _, _, ok := app.Ledger.PendingCommitment(app.reporterID, app.prevBlock); !ok {
		return
	}
	if _, err := app.Ledger.Reveal(chainCtx, app.reporterID, app.prevBlock, app.prevNonce, app.prevRoot, nil); err != nil {
		slog.Debug("previous reveal skipped", "error", err)
		return
	}
	if err := app.Store.DeleteCommitment(ctx, app.reporterID, app.prevBlock); err != nil {
		slog.Warn("commitment cleanup failed", "error", err)
	}
}

// driveMockCommitReveal exercises the mock scanner's end-to-end commit and
// reveal harness: every block commits to the pool, and the commitment from
// two blocks back is opened and checked.
func (app *Application) driveMockCommitReveal(ctx context.Context, chainCtx ports.Ctx) {
	commitment, count := app.mock.GenerateCommitment(chainCtx.BlockNumber)
	slog.Debug("mock commitment generated",
		"block", chainCtx.BlockNumber,
		"commitment", commitment.Hex(),
		"devices", count,
	)

	if chainCtx.BlockNumber > 2 {
		if reveal := app.mock.GenerateReveal(chainCtx.BlockNumber - 2); reveal != nil {
			if !reveal.Verify(crypto.CommitDeviceScan(reveal.DeviceMerkleRoot, reveal.Nonce, reveal.CommitmentBlock)) {
				slog.Error("mock reveal failed verification", "block", reveal.CommitmentBlock)
				return
			}
			slog.Debug("mock reveal verified",
				"block", reveal.CommitmentBlock,
				"devices", len(reveal.RSSIValues),
			)
		}
	}
}

// Close releases resources not bound to the run context.
func (app *Application) Close() error {
	return app.Store.Close()
}
