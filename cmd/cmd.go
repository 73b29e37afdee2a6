// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// formatFlag selects the output format of listing commands.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (text, csv, markdown, json)",
		Value:   "text",
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "track",
				Usage: "Look up a track and print its canonical URI",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SpotifyTrack,
			},
		},
	}
}

// playlistCommand handles operations on the managed playlist
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Inspect and update the managed playlist",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the playlist's track URIs in order",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.PlaylistShow,
			},
			{
				Name:  "add",
				Usage: "Add a track link or id to the top of the playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Action: r.PlaylistAdd,
			},
		},
	}
}

// queueCommand handles the confirmation queue
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect and drive the confirmation queue",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List queued and processing jobs",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.QueueList,
			},
			{
				Name:  "enqueue",
				Usage: "Queue a confirmation question for a track",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Track link or id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "room",
						Usage: "Room to ask in (defaults to bot.room)",
					},
				},
				Action: r.QueueEnqueue,
			},
			{
				Name:   "clear",
				Usage:  "Delete every job",
				Action: r.QueueClear,
			},
			{
				Name:   "tick",
				Usage:  "Run one scheduler step, printing questions instead of sending them",
				Action: r.QueueTick,
			},
			{
				Name:   "markers",
				Usage:  "List dedup markers",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "purge", Usage: "Delete expired markers first"}},
				Action: r.QueueMarkers,
			},
		},
	}
}

// serveCommand runs the bot with the webhook transport and HTTP server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the bot: webhook transport, /healthz and /metrics",
		Action: r.Serve,
	}
}

// consoleCommand runs the bot against the terminal console
func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "console",
		Aliases: []string{"ui"},
		Usage:   "Chat with the bot from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the console is open",
				Value: "./tmp/trackbot-console.log",
			},
		},
		Action: r.Console,
	}
}
