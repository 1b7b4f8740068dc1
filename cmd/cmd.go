// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv or md",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the export to a file instead of stdout",
		},
	}
}

func slotFlag(usage string) cli.Flag {
	return &cli.IntFlag{
		Name:    "slot",
		Aliases: []string{"s"},
		Usage:   usage,
	}
}

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify sign-in",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Spotify in the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Sign out first when already signed in",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Remove stored credentials",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the sign-in state and credential storage",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "migrate",
				Usage:  "Copy credentials from the private file into the keyring",
				Action: r.AuthMigrate,
			},
		},
	}
}

// meCommand shows the signed-in account.
func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show the signed-in Spotify account",
		Flags:  jsonFlags(),
		Action: r.Me,
	}
}

// playlistsCommand lists playlists tracks can be saved into.
func playlistsCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "Include playlists you cannot add tracks to",
		},
	}
	flags = append(flags, jsonFlags()...)
	flags = append(flags, exportFlags()...)

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List your playlists",
		Flags:   flags,
		Action:  r.Playlists,
	}
}

// selectCommand chooses the playlist for a slot.
func selectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Choose the playlist for the default slot or a shortcut slot",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "playlist-id"},
		},
		Flags: []cli.Flag{
			slotFlag("Shortcut slot to set (0 is the default playlist)"),
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Remove the selection for the slot",
			},
		},
		Action: r.Select,
	}
}

// slotsCommand shows the slot windows and selections.
func slotsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "slots",
		Usage:  "Show shortcut slots and their playlists",
		Flags:  jsonFlags(),
		Action: r.Slots,
	}
}

// saveCommand adds the current track.
func saveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Add the currently playing track to the selected playlist",
		Flags: []cli.Flag{
			slotFlag("Save into this shortcut slot instead of the time-of-day slot"),
			&cli.BoolFlag{
				Name:  "shortcut",
				Usage: "Print only the compact outcome string and always exit 0",
			},
		},
		Before: r.saveBefore,
		Action: r.Save,
	}
}

// historyCommand lists previous saves.
func historyCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of entries to show (0 for all)",
			Value:   20,
		},
		&cli.BoolFlag{
			Name:  "clear",
			Usage: "Delete the history of the signed-in account",
		},
	}
	flags = append(flags, jsonFlags()...)
	flags = append(flags, exportFlags()...)

	return &cli.Command{
		Name:   "history",
		Usage:  "Show saved tracks",
		Flags:  flags,
		Action: r.History,
	}
}
