package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"packtrack/internal/capture"
	"packtrack/internal/classify"
	"packtrack/internal/config"
	"packtrack/internal/inventory"
	"packtrack/internal/model"
	"packtrack/internal/store/blob"
	"packtrack/internal/store/codec"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Classifier.Type = "none"
	return cfg
}

func openTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, Options{Command: "test", Console: io.Discard})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return a
}

func closeTestApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func writeFrame(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'f', 'i', 'f'}, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// chatServer answers classification requests with classification and
// search requests with searchIDs.
func chatServer(t *testing.T, classification string, searchIDs []string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		content := classification
		if !strings.Contains(string(body), "image_url") {
			ids, _ := json.Marshal(searchIDs)
			content = string(ids)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestApp_PersistsAcrossSessions(t *testing.T) {
	cfg := newTestConfig(t)

	a := openTestApp(t, cfg)
	box, err := a.AddBox("Kitchen")
	if err != nil {
		t.Fatalf("AddBox() error = %v", err)
	}
	item, err := a.AddItem("", model.ItemDraft{Name: "Whisk", Tags: []string{"baking"}})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if _, err := a.SetBoxFull(box.Name, true); err != nil {
		t.Fatalf("SetBoxFull() error = %v", err)
	}
	closeTestApp(t, a)

	b := openTestApp(t, cfg)
	defer closeTestApp(t, b)

	boxes := b.Inventory().Boxes()
	if len(boxes) != 1 || boxes[0].ID != box.ID || !boxes[0].IsFull {
		t.Fatalf("Boxes() after reopen = %+v, want sealed %s", boxes, box.ID)
	}
	got, ok := b.Inventory().Item(item.ID)
	if !ok {
		t.Fatalf("Item(%s) missing after reopen", item.ID)
	}
	if got.BoxName != "Kitchen" || len(got.Tags) != 1 || got.Tags[0] != "baking" {
		t.Errorf("Item() after reopen = %+v", got)
	}

	// The current box is per session.
	if _, ok := b.Inventory().CurrentBox(); ok {
		t.Error("CurrentBox() after reopen should be empty")
	}
}

func TestApp_CaptureItem(t *testing.T) {
	t.Run("classified", func(t *testing.T) {
		cfg := newTestConfig(t)
		server := chatServer(t, `{"name": "Hammer", "description": "Claw hammer", "tags": ["tools"]}`, nil)
		cfg.Classifier.Type = "http"
		cfg.Classifier.URL = server.URL
		writeFrame(t, cfg.Camera.FrameDir, "shot.jpg")

		a := openTestApp(t, cfg)
		defer closeTestApp(t, a)
		a.AddBox("Garage")

		item, err := a.CaptureItem(context.Background(), "", "red handle", "")
		if err != nil {
			t.Fatalf("CaptureItem() error = %v", err)
		}
		if item.Name != "Hammer" || item.Description != "Claw hammer" {
			t.Errorf("CaptureItem() = %+v, want classified hammer", item)
		}
		if !strings.HasPrefix(item.ImageURL, "data:image/jpeg;base64,/9j/") {
			t.Errorf("ImageURL = %q, want jpeg data URL", item.ImageURL)
		}
	})

	t.Run("fallback without classifier", func(t *testing.T) {
		cfg := newTestConfig(t)
		frame := writeFrame(t, t.TempDir(), "upload.jpeg")

		a := openTestApp(t, cfg)
		defer closeTestApp(t, a)
		box, _ := a.AddBox("Books")

		item, err := a.CaptureItem(context.Background(), box.ID, "paperback", frame)
		if err != nil {
			t.Fatalf("CaptureItem() error = %v", err)
		}
		want := classify.Fallback("paperback")
		if item.Name != want.Name || item.Description != want.Description {
			t.Errorf("CaptureItem() = %+v, want fallback %+v", item, want)
		}
		if len(item.Tags) != 1 || item.Tags[0] != classify.FallbackTag {
			t.Errorf("Tags = %v, want [%s]", item.Tags, classify.FallbackTag)
		}
	})

	t.Run("no frame", func(t *testing.T) {
		a := openTestApp(t, newTestConfig(t))
		defer closeTestApp(t, a)
		a.AddBox("Books")

		_, err := a.CaptureItem(context.Background(), "", "", "")
		if !errors.Is(err, capture.ErrNoFrame) {
			t.Errorf("CaptureItem() error = %v, want ErrNoFrame", err)
		}
		if n := len(a.Inventory().Items()); n != 0 {
			t.Errorf("Items() = %d, want 0", n)
		}
	})

	t.Run("no current box", func(t *testing.T) {
		a := openTestApp(t, newTestConfig(t))
		defer closeTestApp(t, a)

		_, err := a.CaptureItem(context.Background(), "", "", "")
		if !errors.Is(err, ErrNoCurrentBox) {
			t.Errorf("CaptureItem() error = %v, want ErrNoCurrentBox", err)
		}
	})
}

func TestApp_Search(t *testing.T) {
	cfg := newTestConfig(t)
	a := openTestApp(t, cfg)
	defer closeTestApp(t, a)

	a.AddBox("Office")
	stapler, _ := a.AddItem("", model.ItemDraft{Name: "Stapler"})
	lamp, _ := a.AddItem("", model.ItemDraft{Name: "Lamp"})

	server := chatServer(t, "", []string{lamp.ID, "gone", stapler.ID})
	client := classify.NewClient(server.URL, "llava", classify.WithLogger(a.Logger()))
	a.classifier = classify.NewService(client, a.Logger())

	got := a.Search(context.Background(), "desk things")
	if len(got) != 2 || got[0].ID != lamp.ID || got[1].ID != stapler.ID {
		t.Errorf("Search() = %+v, want [lamp stapler]", got)
	}

	if got := a.Search(context.Background(), "   "); len(got) != 0 {
		t.Errorf("Search(blank) = %+v, want empty", got)
	}
}

func TestApp_SearchWithoutClassifier(t *testing.T) {
	a := openTestApp(t, newTestConfig(t))
	defer closeTestApp(t, a)

	a.AddBox("Office")
	a.AddItem("", model.ItemDraft{Name: "Stapler"})

	got := a.Search(context.Background(), "stapler")
	if got == nil || len(got) != 0 {
		t.Errorf("Search() = %#v, want empty non-nil", got)
	}
}

func TestApp_FindBox(t *testing.T) {
	a := openTestApp(t, newTestConfig(t))
	defer closeTestApp(t, a)

	kitchen, _ := a.AddBox("Kitchen")
	a.AddBox("Books")
	a.AddBox("books")

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr error
	}{
		{name: "by id", ref: kitchen.ID, wantID: kitchen.ID},
		{name: "by id prefix", ref: kitchen.ID[:8], wantID: kitchen.ID},
		{name: "by name ignoring case", ref: "KITCHEN", wantID: kitchen.ID},
		{name: "ambiguous name", ref: "Books", wantErr: ErrAmbiguousRef},
		{name: "unknown", ref: "Attic", wantErr: ErrUnknownBox},
		{name: "blank", ref: " ", wantErr: ErrUnknownBox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := a.FindBox(tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("FindBox(%q) error = %v, want %v", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindBox(%q) error = %v", tt.ref, err)
			}
			if box.ID != tt.wantID {
				t.Errorf("FindBox(%q) = %s, want %s", tt.ref, box.ID, tt.wantID)
			}
		})
	}
}

func TestApp_UpdateAndDeleteItem(t *testing.T) {
	a := openTestApp(t, newTestConfig(t))
	defer closeTestApp(t, a)

	a.AddBox("Kitchen")
	item, _ := a.AddItem("", model.ItemDraft{Name: "Pan"})
	garage, _ := a.AddBox("Garage")

	name := "Frying pan"
	updated, err := a.UpdateItem(item.ID, model.ItemPatch{Name: &name}, "garage")
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.Name != name || updated.BoxID != garage.ID || updated.BoxName != "Garage" {
		t.Errorf("UpdateItem() = %+v, want renamed and moved to garage", updated)
	}
	if got := a.Inventory().ItemsInCurrentBox(); len(got) != 1 || got[0].ID != item.ID {
		t.Errorf("ItemsInCurrentBox() = %+v, want moved item", got)
	}

	if _, err := a.UpdateItem(item.ID, model.ItemPatch{}, "attic"); !errors.Is(err, ErrUnknownBox) {
		t.Errorf("UpdateItem(move to unknown) error = %v, want ErrUnknownBox", err)
	}

	if _, err := a.DeleteItem(item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := a.DeleteItem(item.ID); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("DeleteItem(again) error = %v, want ErrUnknownItem", err)
	}
}

func TestApp_LegacyMigrationOnStartup(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Legacy.Enabled = true

	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	legacyStorage, err := blob.NewFileSystemStorage(cfg.Legacy.Blob.FSRoot)
	if err != nil {
		t.Fatal(err)
	}
	boxes, _ := codec.EncodeBoxes([]model.Box{{ID: "b1", Name: "Old box", CreatedAt: created}})
	items, _ := codec.EncodeItems([]model.Item{{ID: "i1", BoxID: "b1", BoxName: "Old box", Name: "Kettle", Tags: []string{}, Timestamp: created}})
	ctx := context.Background()
	legacyStorage.Set(ctx, blob.KeyBoxes, boxes)
	legacyStorage.Set(ctx, blob.KeyItems, items)

	a := openTestApp(t, cfg)
	report, ok := a.MigrationReport()
	if !ok || !report.Done() {
		t.Fatalf("MigrationReport() = %+v, %v, want done", report, ok)
	}
	if got := a.Inventory().Items(); len(got) != 1 || got[0].Name != "Kettle" {
		t.Errorf("Items() = %+v, want migrated kettle", got)
	}
	closeTestApp(t, a)

	if _, found, _ := legacyStorage.Get(ctx, blob.KeyBoxes); found {
		t.Error("legacy boxes key still present after migration")
	}

	// A second start has nothing left to move and keeps the data.
	b := openTestApp(t, cfg)
	defer closeTestApp(t, b)
	report, _ = b.MigrationReport()
	if report.Boxes.Found || report.Items.Found {
		t.Errorf("second MigrationReport() = %+v, want nothing found", report)
	}
	if n := len(b.Inventory().Boxes()); n != 1 {
		t.Errorf("Boxes() = %d, want 1", n)
	}
}

func TestApp_Export(t *testing.T) {
	a := openTestApp(t, newTestConfig(t))
	defer closeTestApp(t, a)
	a.AddBox("Kitchen")

	dest := filepath.Join(t.TempDir(), "export.db")
	if err := a.Export(context.Background(), dest); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		t.Errorf("export file missing or empty: %v", err)
	}
}

func TestApp_ExportRequiresSQLite(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Store.Type = "memory"

	a := openTestApp(t, cfg)
	defer closeTestApp(t, a)

	if err := a.Export(context.Background(), filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Error("Export() on memory store expected error")
	}
	if _, err := a.Migrate(context.Background()); err == nil {
		t.Error("Migrate() on memory store expected error")
	}
}

func TestApp_EncryptedBlobStore(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Type = "test"
	cfg.Encryption.PassphraseEnv = "PACKTRACK_TEST_PASSPHRASE"
	cfg.Store.Type = "blob"
	cfg.Store.Blob = config.BlobConfig{
		Type:      "filesystem",
		Encrypted: true,
		FSRoot:    filepath.Join(cfg.BaseDir, "blobs"),
	}

	t.Run("missing passphrase", func(t *testing.T) {
		t.Setenv("PACKTRACK_TEST_PASSPHRASE", "")
		_, err := NewApp(context.Background(), cfg, Options{Console: io.Discard})
		if err == nil {
			t.Fatal("NewApp() without passphrase expected error")
		}
	})

	t.Run("prompted passphrase", func(t *testing.T) {
		t.Setenv("PACKTRACK_TEST_PASSPHRASE", "")
		prompted := false
		a, err := NewApp(context.Background(), cfg, Options{
			Console:    io.Discard,
			Passphrase: func() (string, error) { prompted = true; return "secret", nil },
		})
		if err != nil {
			t.Fatalf("NewApp() error = %v", err)
		}
		closeTestApp(t, a)
		if !prompted {
			t.Error("passphrase prompt not used")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		t.Setenv("PACKTRACK_TEST_PASSPHRASE", "secret")

		a := openTestApp(t, cfg)
		a.AddBox("Sealed")
		closeTestApp(t, a)

		raw, err := os.ReadFile(filepath.Join(cfg.Store.Blob.FSRoot, blob.KeyBoxes))
		if err != nil {
			t.Fatalf("reading blob: %v", err)
		}
		if !strings.HasPrefix(string(raw), "PTENC") {
			t.Errorf("blob not sealed: %q", raw)
		}

		b := openTestApp(t, cfg)
		defer closeTestApp(t, b)
		if boxes := b.Inventory().Boxes(); len(boxes) != 1 || boxes[0].Name != "Sealed" {
			t.Errorf("Boxes() after reopen = %+v", boxes)
		}
	})
}

func TestApp_StoreFailsToOpen(t *testing.T) {
	cfg := newTestConfig(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Store.DataDir = filepath.Join(blocker, "db")

	a := openTestApp(t, cfg)

	box, err := a.AddBox("Spare room")
	if err != nil {
		t.Fatalf("AddBox() error = %v", err)
	}
	item, err := a.AddItem("", model.ItemDraft{Name: "Lamp"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if current, ok := a.Inventory().CurrentBox(); !ok || current.ID != box.ID {
		t.Errorf("CurrentBox() = %+v, %v, want %s", current, ok, box.ID)
	}
	if got := a.Inventory().ItemsInCurrentBox(); len(got) != 1 || got[0].ID != item.ID {
		t.Errorf("ItemsInCurrentBox() = %+v, want [%s]", got, item.ID)
	}

	if err := a.Export(context.Background(), filepath.Join(t.TempDir(), "out.db")); !errors.Is(err, inventory.ErrStorageUnavailable) {
		t.Errorf("Export() error = %v, want ErrStorageUnavailable", err)
	}
	closeTestApp(t, a)

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	log := string(data)
	if !strings.Contains(log, "store unavailable") {
		t.Errorf("log missing store failure:\n%s", log)
	}
	if n := strings.Count(log, "durable write failed"); n != 2 {
		t.Errorf("failed durable writes logged = %d, want 2", n)
	}
}

func TestNewApp_UnknownClassifier(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Classifier.Type = "oracle"

	if _, err := NewApp(context.Background(), cfg, Options{Console: io.Discard}); err == nil {
		t.Error("NewApp() with unknown classifier expected error")
	}
}
