package main

import (
	"fmt"
	"io"
	"strings"

	"packtrack/internal/config"
	"packtrack/internal/inventory"
	"packtrack/internal/legacy"
	"packtrack/internal/model"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func boxState(box model.Box) string {
	if box.IsFull {
		return "full"
	}
	return "open"
}

func printBoxes(w io.Writer, inv *inventory.Inventory) {
	boxes := inv.Boxes()
	if len(boxes) == 0 {
		fmt.Fprintln(w, "No boxes.")
		return
	}
	current := inv.CurrentBoxID()
	for _, b := range boxes {
		marker := " "
		if b.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %-5s  %3d item(s)  %s  %s\n",
			marker,
			shortID(b.ID),
			boxState(b),
			len(inv.ItemsInBox(b.ID)),
			b.CreatedAt.Local().Format("2006-01-02 15:04"),
			b.Name,
		)
	}
}

func printItems(w io.Writer, items []model.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items.")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s  %-20s  %s  [%s]\n",
			shortID(it.ID),
			it.BoxName,
			it.Name,
			strings.Join(it.Tags, ", "),
		)
	}
}

func printItem(w io.Writer, it model.Item) {
	fmt.Fprintf(w, "%s  %s\n", shortID(it.ID), it.Name)
	fmt.Fprintf(w, "  box:  %s\n", it.BoxName)
	if it.Description != "" {
		fmt.Fprintf(w, "  desc: %s\n", it.Description)
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(w, "  tags: %s\n", strings.Join(it.Tags, ", "))
	}
}

func printReport(w io.Writer, r legacy.Report) {
	for _, c := range []legacy.CollectionReport{r.Boxes, r.Items} {
		switch {
		case c.Err != nil:
			fmt.Fprintf(w, "%s: migrated %d of %d, kept for retry: %v\n", c.Key, c.Migrated, c.Total, c.Err)
		case !c.Found:
			fmt.Fprintf(w, "%s: nothing to migrate\n", c.Key)
		default:
			fmt.Fprintf(w, "%s: migrated %d record(s)\n", c.Key, c.Migrated)
		}
	}
}

func describeStore(cfg *config.Config) string {
	switch cfg.Store.Type {
	case "sqlite":
		return "sqlite in " + cfg.Store.DataDir
	case "blob":
		return "blob " + describeBlob(cfg.Store.Blob)
	default:
		return cfg.Store.Type
	}
}

func describeLegacy(cfg *config.Config) string {
	if !cfg.Legacy.Enabled {
		return "disabled"
	}
	return describeBlob(cfg.Legacy.Blob)
}

func describeBlob(b config.BlobConfig) string {
	var s string
	switch b.Type {
	case "filesystem":
		s = "filesystem " + b.FSRoot
	case "s3":
		s = fmt.Sprintf("s3://%s/%s", b.S3Bucket, b.S3Prefix)
	default:
		s = b.Type
	}
	if b.Encrypted {
		s += " (encrypted)"
	}
	return s
}

func describeClassifier(cfg *config.Config) string {
	if cfg.Classifier.Type != "http" {
		return cfg.Classifier.Type
	}
	return fmt.Sprintf("%s (%s)", cfg.Classifier.URL, cfg.Classifier.Model)
}
