package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"packtrack/internal/capture"
	"packtrack/internal/classify"
	"packtrack/internal/config"
	"packtrack/internal/encryption"
	"packtrack/internal/inventory"
	"packtrack/internal/legacy"
	"packtrack/internal/model"
	"packtrack/internal/store"
	"packtrack/internal/store/blob"
	"packtrack/internal/store/sqlite"
)

var (
	ErrEmptyName    = errors.New("name must not be empty")
	ErrUnknownBox   = errors.New("unknown box")
	ErrUnknownItem  = errors.New("unknown item")
	ErrAmbiguousRef = errors.New("ambiguous reference")
	ErrNoCurrentBox = errors.New("no box selected")
)

// Options configures NewApp.
type Options struct {
	// Command names the CLI command being run, e.g. "box add" or "shell".
	Command string

	// Passphrase is called for the key passphrase when the configured
	// environment variable is unset. May be nil.
	Passphrase func() (string, error)

	// Console receives warnings and errors (everything when Verbose is set).
	// Defaults to os.Stderr.
	Console io.Writer
	Verbose bool
}

// App is the application layer between the CLI and the inventory.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw references typed by the user, and drains pending writes on
// Close.
type App struct {
	cfg        *config.Config
	session    Session
	passphrase func() (string, error)

	logger  *slog.Logger
	logFile *os.File

	enc encryption.Encryptor
	dc  encryption.DecryptionContext

	store      *store.Deferred
	inv        *inventory.Inventory
	classifier *classify.Service
	camera     capture.Camera

	// migration is written by the store open before Ready closes.
	migration *legacy.Report
}

// NewApp creates a fully wired App from the given config, waits for the
// store to open and loads the inventory from it. The caller must call Close
// when done.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	session := NewSession(opts.Command, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, session.ID, console, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{
		cfg:        cfg,
		session:    session,
		passphrase: opts.Passphrase,
		logger:     logger,
		logFile:    logFile,
		camera:     capture.NewFileCamera(cfg.Camera.FrameDir, cfg.Camera.Ignore),
	}

	if needsKeys(cfg) {
		if err := a.unlock(); err != nil {
			logFile.Close()
			return nil, err
		}
	}

	classifier, err := newClassifier(cfg.Classifier, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	a.classifier = classify.NewService(classifier, logger)

	a.store = store.NewDeferred(ctx, a.openStore)
	a.inv = inventory.New(a.store, &slogAdapter{l: logger}, inventory.RealClock{}, inventory.UUIDGenerator{})

	// A store that fails to open leaves the inventory working in memory;
	// its durable writes fail with inventory.ErrStorageUnavailable and are logged.
	switch err := a.store.Wait(ctx); {
	case err == nil:
		if err := a.inv.Load(ctx); err != nil {
			logger.Warn("inventory partially loaded", "error", err)
		}
	case ctx.Err() != nil:
		a.Close(context.Background())
		return nil, fmt.Errorf("waiting for store: %w", err)
	default:
		logger.Error("store unavailable, changes will not be saved", "store", cfg.Store.Type, "error", err)
	}

	logger.Info("session started", "command", session.Command, "store", cfg.Store.Type)
	return a, nil
}

// openStore opens the configured backend and, for sqlite with legacy
// migration enabled, moves the legacy blob collections into it first.
func (a *App) openStore(ctx context.Context) (inventory.Store, error) {
	s, err := store.NewStoreFromConfig(ctx, a.cfg.Store, a.enc, a.dc)
	if err != nil {
		return nil, err
	}

	if a.cfg.Store.Type == "sqlite" && a.cfg.Legacy.Enabled {
		report, err := a.migrateLegacy(ctx, s)
		a.migration = &report
		if err != nil {
			// Unmigrated collections stay in legacy storage for the next start.
			a.logger.Warn("legacy migration incomplete", "error", err)
		}
	}
	return s, nil
}

func (a *App) migrateLegacy(ctx context.Context, dst inventory.Store) (legacy.Report, error) {
	if a.cfg.Legacy.Blob.Encrypted {
		if err := a.unlock(); err != nil {
			return legacy.Report{}, err
		}
	}
	src, err := blob.NewStorageFromConfig(ctx, a.cfg.Legacy.Blob, a.enc, a.dc)
	if err != nil {
		return legacy.Report{}, fmt.Errorf("opening legacy storage: %w", err)
	}
	return legacy.Migrate(ctx, src, dst, &slogAdapter{l: a.logger})
}

// unlock loads the key pair and decrypts the private key. It is a no-op once
// unlocked.
func (a *App) unlock() error {
	if a.dc != nil {
		return nil
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return fmt.Errorf("encryption keys not found at %s: run 'packtrack config keys'", a.cfg.Encryption.PublicKeyPath)
	}

	pass, err := resolvePassphrase(a.cfg.Encryption, a.passphrase)
	if err != nil {
		return err
	}
	dc, err := enc.Unlock(pass)
	if err != nil {
		return fmt.Errorf("unlocking keys: %w", err)
	}

	a.enc, a.dc = enc, dc
	return nil
}

func needsKeys(cfg *config.Config) bool {
	if cfg.Store.Type == "blob" && cfg.Store.Blob.Encrypted {
		return true
	}
	return cfg.Store.Type == "sqlite" && cfg.Legacy.Enabled && cfg.Legacy.Blob.Encrypted
}

func resolvePassphrase(cfg config.EncryptionConfig, prompt func() (string, error)) (string, error) {
	if cfg.PassphraseEnv != "" {
		if pass := os.Getenv(cfg.PassphraseEnv); pass != "" {
			return pass, nil
		}
	}
	if prompt == nil {
		return "", fmt.Errorf("no passphrase available: set %s", cfg.PassphraseEnv)
	}
	pass, err := prompt()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return pass, nil
}

// SetupKeys generates the age key pair used for encrypted blob storage.
func SetupKeys(cfg *config.Config, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	return enc.Setup(passphrase)
}

// newClassifier creates the classifier named by cfg. Type "none" yields a nil
// classifier, which makes the service fall back on every call.
func newClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (classify.Classifier, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http classifier requires url to be set")
		}
		retry := classify.DefaultRetryConfig()
		if cfg.MaxAttempts > 0 {
			retry.MaxAttempts = cfg.MaxAttempts
		}
		opts := []classify.ClientOption{
			classify.WithRetryConfig(retry),
			classify.WithLogger(logger),
		}
		if cfg.TimeoutSeconds > 0 {
			opts = append(opts, classify.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			}))
		}
		if cfg.APIKeyEnv != "" {
			if key := os.Getenv(cfg.APIKeyEnv); key != "" {
				opts = append(opts, classify.WithAPIKey(key))
			}
		}
		return classify.NewClient(cfg.URL, cfg.Model, opts...), nil
	default:
		return nil, fmt.Errorf("unknown classifier type: %q", cfg.Type)
	}
}

func (a *App) Session() Session                { return a.session }
func (a *App) Inventory() *inventory.Inventory { return a.inv }
func (a *App) Logger() *slog.Logger            { return a.logger }

// MigrationReport returns the result of the legacy migration run at
// startup, if one ran.
func (a *App) MigrationReport() (legacy.Report, bool) {
	if a.migration == nil {
		return legacy.Report{}, false
	}
	return *a.migration, true
}

// AddBox creates a box and makes it the current box.
func (a *App) AddBox(name string) (model.Box, error) {
	box, ok := a.inv.AddBox(name)
	if !ok {
		return model.Box{}, ErrEmptyName
	}
	return box, nil
}

// FindBox resolves ref as a box ID, a unique ID prefix, or a box name
// (case-insensitive).
func (a *App) FindBox(ref string) (model.Box, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Box{}, ErrUnknownBox
	}
	if box, ok := a.inv.Box(ref); ok {
		return box, nil
	}

	var matches []model.Box
	for _, box := range a.inv.Boxes() {
		if strings.HasPrefix(box.ID, ref) || strings.EqualFold(box.Name, ref) {
			matches = append(matches, box)
		}
	}
	switch len(matches) {
	case 0:
		return model.Box{}, fmt.Errorf("%w: %s", ErrUnknownBox, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Box{}, fmt.Errorf("%w: %q matches %d boxes", ErrAmbiguousRef, ref, len(matches))
	}
}

// FindItem resolves ref as an item ID or a unique ID prefix.
func (a *App) FindItem(ref string) (model.Item, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Item{}, ErrUnknownItem
	}
	if item, ok := a.inv.Item(ref); ok {
		return item, nil
	}

	var matches []model.Item
	for _, item := range a.inv.Items() {
		if strings.HasPrefix(item.ID, ref) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return model.Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Item{}, fmt.Errorf("%w: %q matches %d items", ErrAmbiguousRef, ref, len(matches))
	}
}

// SelectBox makes the referenced box the current box.
func (a *App) SelectBox(ref string) (model.Box, error) {
	box, err := a.FindBox(ref)
	if err != nil {
		return model.Box{}, err
	}
	a.inv.SelectBox(box.ID)
	return box, nil
}

// SetBoxFull seals or unseals the referenced box.
func (a *App) SetBoxFull(ref string, full bool) (model.Box, error) {
	box, err := a.FindBox(ref)
	if err != nil {
		return model.Box{}, err
	}
	a.inv.UpdateBoxStatus(box.ID, full)
	box.IsFull = full
	return box, nil
}

// targetBox resolves boxRef, or the current box when boxRef is empty.
func (a *App) targetBox(boxRef string) (model.Box, error) {
	if boxRef != "" {
		return a.FindBox(boxRef)
	}
	box, ok := a.inv.CurrentBox()
	if !ok {
		return model.Box{}, ErrNoCurrentBox
	}
	return box, nil
}

// CaptureItem photographs an item and adds it to the box. The photo comes
// from imagePath when set, otherwise from the camera. Classification never
// fails: an unreachable classifier yields the fallback name and tags.
func (a *App) CaptureItem(ctx context.Context, boxRef, description, imagePath string) (model.Item, error) {
	box, err := a.targetBox(boxRef)
	if err != nil {
		return model.Item{}, err
	}

	var frame capture.Frame
	if imagePath != "" {
		frame, err = capture.ReadFrame(imagePath)
	} else {
		frame, err = a.camera.Capture(ctx)
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("capturing photo: %w", err)
	}

	c := a.classifier.ClassifyItem(ctx, frame.Data, description)
	item, ok := a.inv.AddItem(box.ID, model.ItemDraft{
		ImageURL:    frame.DataURL(),
		Name:        c.Name,
		Description: c.Description,
		Tags:        c.Tags,
	})
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s", ErrUnknownBox, box.ID)
	}
	return item, nil
}

// AddItem adds an item without a photo or classification.
func (a *App) AddItem(boxRef string, draft model.ItemDraft) (model.Item, error) {
	box, err := a.targetBox(boxRef)
	if err != nil {
		return model.Item{}, err
	}
	item, ok := a.inv.AddItem(box.ID, draft)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s", ErrUnknownBox, box.ID)
	}
	return item, nil
}

// UpdateItem applies patch to the referenced item. When moveTo is set the
// item is moved to that box and its box name snapshot refreshed.
func (a *App) UpdateItem(ref string, patch model.ItemPatch, moveTo string) (model.Item, error) {
	item, err := a.FindItem(ref)
	if err != nil {
		return model.Item{}, err
	}
	if moveTo != "" {
		box, err := a.FindBox(moveTo)
		if err != nil {
			return model.Item{}, err
		}
		patch.BoxID = &box.ID
		patch.BoxName = &box.Name
	}

	a.inv.UpdateItem(item.ID, patch)
	updated, _ := a.inv.Item(item.ID)
	return updated, nil
}

// DeleteItem removes the referenced item and returns it.
func (a *App) DeleteItem(ref string) (model.Item, error) {
	item, err := a.FindItem(ref)
	if err != nil {
		return model.Item{}, err
	}
	a.inv.DeleteItem(item.ID)
	return item, nil
}

// Search asks the classifier which items match query and returns them in
// ranked order. Any failure yields no results.
func (a *App) Search(ctx context.Context, query string) []model.Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Item{}
	}
	ids := a.classifier.SearchItems(ctx, query, a.inv.Items())
	return a.inv.ItemsByID(ids)
}

// Migrate runs the legacy migration into the sqlite store on demand,
// regardless of legacy.enabled, and reloads the inventory afterwards.
func (a *App) Migrate(ctx context.Context) (legacy.Report, error) {
	if a.cfg.Store.Type != "sqlite" {
		return legacy.Report{}, fmt.Errorf("migration requires the sqlite store (configured: %s)", a.cfg.Store.Type)
	}
	backend, ok := a.store.Backend()
	if !ok {
		return legacy.Report{}, fmt.Errorf("store not open: %w", inventory.ErrStorageUnavailable)
	}
	if err := a.inv.Flush(ctx); err != nil {
		return legacy.Report{}, fmt.Errorf("flushing writes: %w", err)
	}

	report, err := a.migrateLegacy(ctx, backend)
	if loadErr := a.inv.Load(ctx); loadErr != nil {
		a.logger.Warn("inventory partially reloaded", "error", loadErr)
	}
	return report, err
}

// Export writes a consistent snapshot of the sqlite database to dest.
func (a *App) Export(ctx context.Context, dest string) error {
	backend, ok := a.store.Backend()
	if !ok {
		return fmt.Errorf("store not open: %w", inventory.ErrStorageUnavailable)
	}
	db, ok := backend.(*sqlite.Store)
	if !ok {
		return fmt.Errorf("export requires the sqlite store (configured: %s)", a.cfg.Store.Type)
	}
	if err := a.inv.Flush(ctx); err != nil {
		return fmt.Errorf("flushing writes: %w", err)
	}
	return db.BackupTo(ctx, dest)
}

// Close drains pending durable writes and closes all resources.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.inv != nil {
		if n := a.inv.Pending(); n > 0 {
			a.logger.Debug("draining durable writes", "pending", n)
		}
		if err := a.inv.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("draining writes: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
