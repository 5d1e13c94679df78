package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"packtrack/internal/app"
	"packtrack/internal/config"
	"packtrack/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates an App. The caller must call closeApp.
// command identifies the CLI command being run (e.g. "box add", "shell").
func newApp(ctx context.Context, command string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, app.Options{
		Command:    command,
		Passphrase: promptPassphrase,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp drains pending writes. It uses its own deadline so an interrupted
// command still persists what it changed.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

// promptPassphrase reads the key passphrase from the terminal without echo.
func promptPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:           "packtrack",
	Short:         "Track what you pack into which box",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s\n", describeStore(cfg))
		fmt.Printf("Legacy:     %s\n", describeLegacy(cfg))
		fmt.Printf("Classifier: %s\n", describeClassifier(cfg))
		fmt.Printf("Frames:     %s\n", cfg.Camera.FrameDir)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair for encrypted blob storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		pass, err := promptPassphrase()
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stderr, "Repeat ")
		again, err := promptPassphrase()
		if err != nil {
			return err
		}
		if pass != again {
			return errors.New("passphrases do not match")
		}

		if err := app.SetupKeys(cfg, pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

// box command
var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Manage boxes",
}

var boxAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a box",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "box add")
		if err != nil {
			return err
		}
		defer closeApp(a)

		box, err := a.AddBox(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("Created box %s (%s)\n", box.Name, shortID(box.ID))
		return nil
	},
}

var boxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List boxes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "box list")
		if err != nil {
			return err
		}
		defer closeApp(a)

		printBoxes(os.Stdout, a.Inventory())
		return nil
	},
}

func setBoxFullCmd(use, short, command string, full bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), command)
			if err != nil {
				return err
			}
			defer closeApp(a)

			box, err := a.SetBoxFull(args[0], full)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", box.Name, boxState(box))
			return nil
		},
	}
}

var (
	boxSealCmd   = setBoxFullCmd("seal BOX", "Mark a box as full", "box seal", true)
	boxUnsealCmd = setBoxFullCmd("unseal BOX", "Reopen a full box", "box unseal", false)
)

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add [DESCRIPTION]",
	Short: "Photograph an item and add it to a box",
	Long: `Photograph an item and add it to a box.

The photo is the newest JPEG in the configured frame directory, or --image.
With --name the item is added as typed, without a photo or classification.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		boxRef, _ := cmd.Flags().GetString("box")
		image, _ := cmd.Flags().GetString("image")
		name, _ := cmd.Flags().GetString("name")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		description := strings.Join(args, " ")

		if boxRef == "" {
			return errors.New("--box is required")
		}

		a, err := newApp(cmd.Context(), "item add")
		if err != nil {
			return err
		}
		defer closeApp(a)

		var item model.Item
		if name != "" {
			item, err = a.AddItem(boxRef, model.ItemDraft{Name: name, Description: description, Tags: tags})
		} else {
			item, err = a.CaptureItem(cmd.Context(), boxRef, description, image)
		}
		if err != nil {
			return err
		}
		printItem(os.Stdout, item)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	RunE: func(cmd *cobra.Command, args []string) error {
		boxRef, _ := cmd.Flags().GetString("box")

		a, err := newApp(cmd.Context(), "item list")
		if err != nil {
			return err
		}
		defer closeApp(a)

		items := a.Inventory().Items()
		if boxRef != "" {
			box, err := a.FindBox(boxRef)
			if err != nil {
				return err
			}
			items = a.Inventory().ItemsInBox(box.ID)
		}
		printItems(os.Stdout, items)
		return nil
	},
}

var itemUpdateCmd = &cobra.Command{
	Use:   "update ITEM",
	Short: "Edit an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch model.ItemPatch
		flags := cmd.Flags()
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			patch.Name = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("tags") {
			v, _ := flags.GetStringSlice("tags")
			patch.Tags = &v
		}
		moveTo, _ := flags.GetString("box")

		a, err := newApp(cmd.Context(), "item update")
		if err != nil {
			return err
		}
		defer closeApp(a)

		item, err := a.UpdateItem(args[0], patch, moveTo)
		if err != nil {
			return err
		}
		printItem(os.Stdout, item)
		return nil
	},
}

var itemRmCmd = &cobra.Command{
	Use:   "rm ITEM",
	Short: "Remove an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "item rm")
		if err != nil {
			return err
		}
		defer closeApp(a)

		item, err := a.DeleteItem(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s from %s\n", item.Name, item.BoxName)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find items by description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "search")
		if err != nil {
			return err
		}
		defer closeApp(a)

		printItems(os.Stdout, a.Search(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy blob data into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "migrate")
		if err != nil {
			return err
		}
		defer closeApp(a)

		report, err := a.Migrate(cmd.Context())
		printReport(os.Stdout, report)
		return err
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export DEST",
	Short: "Write a snapshot of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "export")
		if err != nil {
			return err
		}
		defer closeApp(a)

		if err := a.Export(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", args[0])
		return nil
	},
}

// shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive packing session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "shell")
		if err != nil {
			return err
		}
		defer closeApp(a)

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		return runShell(cmd.Context(), a, os.Stdin, os.Stdout, interactive)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log everything to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// box subcommands
	boxCmd.AddCommand(boxAddCmd)
	boxCmd.AddCommand(boxListCmd)
	boxCmd.AddCommand(boxSealCmd)
	boxCmd.AddCommand(boxUnsealCmd)

	// item subcommands
	itemCmd.AddCommand(itemAddCmd)
	itemAddCmd.Flags().StringP("box", "b", "", "Box ID, ID prefix or name")
	itemAddCmd.Flags().StringP("image", "i", "", "JPEG to use instead of the newest frame")
	itemAddCmd.Flags().StringP("name", "n", "", "Add without photo or classification")
	itemAddCmd.Flags().StringSliceP("tag", "t", nil, "Tag (with --name), repeatable")
	itemCmd.AddCommand(itemListCmd)
	itemListCmd.Flags().StringP("box", "b", "", "Only items in this box")
	itemCmd.AddCommand(itemUpdateCmd)
	itemUpdateCmd.Flags().String("name", "", "New name")
	itemUpdateCmd.Flags().String("description", "", "New description")
	itemUpdateCmd.Flags().StringSlice("tags", nil, "Replace tags")
	itemUpdateCmd.Flags().String("box", "", "Move to this box")
	itemCmd.AddCommand(itemRmCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(boxCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(shellCmd)
}
