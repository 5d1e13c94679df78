package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"packtrack/internal/app"
	"packtrack/internal/inventory"
	"packtrack/internal/model"
)

const shellHelp = `Commands:
  box NAME          create a box and switch to it
  use BOX           switch to a box
  boxes             list boxes
  seal | unseal     mark the current box full or open
  snap [NOTE]       photograph an item into the current box
  add NAME          add an item to the current box without a photo
  ls                list items in the current box
  mv ITEM BOX       move an item
  rename ITEM NAME  rename an item
  rm ITEM           remove an item
  find QUERY        search all items
  help              show this help
  quit              leave the shell`

// runShell reads commands line by line from in. When interactive it prints
// a prompt and re-renders the current box after every change.
func runShell(ctx context.Context, a *app.App, in io.Reader, out io.Writer, interactive bool) error {
	inv := a.Inventory()

	var dirty atomic.Bool
	cancel := inv.Subscribe(func(inventory.Change) { dirty.Store(true) })
	defer cancel()

	if interactive {
		fmt.Fprintln(out, "packtrack shell. Type 'help' for commands.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, prompt(inv))
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := shellCommand(ctx, a, out, cmd, arg); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}

		if interactive && dirty.Swap(false) {
			renderCurrentBox(out, inv)
		}
	}
	return scanner.Err()
}

func prompt(inv *inventory.Inventory) string {
	if box, ok := inv.CurrentBox(); ok {
		return fmt.Sprintf("[%s] > ", box.Name)
	}
	return "> "
}

func shellCommand(ctx context.Context, a *app.App, out io.Writer, cmd, arg string) error {
	inv := a.Inventory()

	switch cmd {
	case "help", "?":
		fmt.Fprintln(out, shellHelp)
	case "box":
		box, err := a.AddBox(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created box %s\n", box.Name)
	case "use":
		box, err := a.SelectBox(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Using box %s\n", box.Name)
	case "boxes":
		printBoxes(out, inv)
	case "seal", "unseal":
		box, ok := inv.CurrentBox()
		if !ok {
			return app.ErrNoCurrentBox
		}
		box, err := a.SetBoxFull(box.ID, cmd == "seal")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", box.Name, boxState(box))
	case "snap":
		item, err := a.CaptureItem(ctx, "", arg, "")
		if err != nil {
			return err
		}
		printItem(out, item)
	case "add":
		item, err := a.AddItem("", model.ItemDraft{Name: arg})
		if err != nil {
			return err
		}
		printItem(out, item)
	case "ls":
		if _, ok := inv.CurrentBox(); !ok {
			return app.ErrNoCurrentBox
		}
		printItems(out, inv.ItemsInCurrentBox())
	case "mv":
		itemRef, boxRef, ok := strings.Cut(arg, " ")
		if !ok {
			return fmt.Errorf("usage: mv ITEM BOX")
		}
		item, err := a.UpdateItem(itemRef, model.ItemPatch{}, strings.TrimSpace(boxRef))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Moved %s to %s\n", item.Name, item.BoxName)
	case "rename":
		itemRef, name, ok := strings.Cut(arg, " ")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("usage: rename ITEM NAME")
		}
		item, err := a.UpdateItem(itemRef, model.ItemPatch{Name: &name}, "")
		if err != nil {
			return err
		}
		printItem(out, item)
	case "rm":
		item, err := a.DeleteItem(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", item.Name)
	case "find":
		printItems(out, a.Search(ctx, arg))
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func renderCurrentBox(out io.Writer, inv *inventory.Inventory) {
	box, ok := inv.CurrentBox()
	if !ok {
		return
	}
	items := inv.ItemsInCurrentBox()
	fmt.Fprintf(out, "-- %s (%s): %d item(s)\n", box.Name, boxState(box), len(items))
}
