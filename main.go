package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/stxfxno/listify/client"
	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/constant"
	"github.com/stxfxno/listify/log"
	"github.com/stxfxno/listify/redact"
	"github.com/stxfxno/listify/relay"
	"github.com/stxfxno/listify/spotify"
	"github.com/stxfxno/listify/spotify/auth"
	"github.com/stxfxno/listify/spotify/types"
	"github.com/stxfxno/listify/transfer"
)

func main() {
	logger := log.NewDefault()

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "listify",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Spotify collection to local MP3 transfer",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:   "serve",
				Usage:  "Run the relay server",
				Action: serve,
			},
			//nolint:exhaustruct
			{
				Name:   "login",
				Usage:  "Store Spotify API credentials",
				Action: login,
			},
			//nolint:exhaustruct
			{
				Name:      "fetch",
				Usage:     "List the tracks of an album or playlist link",
				ArgsUsage: "<link>",
				Action:    fetch,
			},
			//nolint:exhaustruct
			{
				Name:      "search",
				Usage:     "Search the catalog",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Search kind: tracks, artists, or albums",
						Value: "tracks",
					},
				},
				Action: search,
			},
			//nolint:exhaustruct
			{
				Name:      "download",
				Usage:     "Transfer the tracks of an album or playlist link",
				ArgsUsage: "<link>",
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.IntFlag{
						Name:  "track",
						Usage: "Transfer only the Nth listed track",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "tag",
						Usage: "Embed ID3 tags into the downloaded files",
					},
				},
				Action: download,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func boot(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := boot(cmd)
	if nil != err {
		return err
	}

	srv := relay.New(logger, conf.Server, conf.Downloader.Timeouts)

	logger.Info().Str("addr", conf.Server.ListenAddr).Msg("Starting relay server")
	if err := srv.Start(ctx); nil != err {
		return fmt.Errorf("run relay server: %w", err)
	}
	logger.Info().Msg("Relay server stopped")

	return nil
}

func login(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := boot(cmd)
	if nil != err {
		return err
	}

	creds, err := promptCredentials()
	if nil != err {
		return fmt.Errorf("ask for credentials: %v", err)
	}

	store, err := openStore(conf.Client.StateDir)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := store.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close credential store")
		}
	}()

	if err := store.Save(*creds); nil != err {
		return fmt.Errorf("save credentials: %v", err)
	}

	logger.
		Info().
		Str("client_id", redact.String(creds.ClientID)).
		Msg("Credentials stored successfully")

	return nil
}

func fetch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := boot(cmd)
	if nil != err {
		return err
	}

	link, err := spotify.ParseLink(cmd.Args().First())
	if nil != err {
		if errors.Is(err, spotify.ErrInvalidLink) {
			logger.Error().Msg("The link must be a Spotify album or playlist URL.")
			return exitCodeError(1)
		}

		return fmt.Errorf("parse link: %w", err)
	}

	catalog, store, err := newCatalog(logger, conf)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := store.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close credential store")
		}
	}()

	collection, err := catalog.Collection(ctx, link)
	if nil != err {
		return fmt.Errorf("fetch collection: %w", err)
	}

	renderCollection(os.Stdout, collection)

	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := boot(cmd)
	if nil != err {
		return err
	}

	query := cmd.Args().First()
	if query == "" {
		logger.Error().Msg("A search query is required.")
		return exitCodeError(1)
	}

	var kind types.SearchKind
	switch k := cmd.String("kind"); k {
	case "tracks":
		kind = types.SearchKindTracks
	case "artists":
		kind = types.SearchKindArtists
	case "albums":
		kind = types.SearchKindAlbums
	default:
		logger.Error().Str("kind", k).Msg("Search kind must be tracks, artists, or albums.")
		return exitCodeError(1)
	}

	catalog, store, err := newCatalog(logger, conf)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := store.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close credential store")
		}
	}()

	collection, err := catalog.Search(ctx, query, kind)
	if nil != err {
		return fmt.Errorf("search catalog: %w", err)
	}

	renderCollection(os.Stdout, collection)

	return nil
}

func download(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := boot(cmd)
	if nil != err {
		return err
	}

	link, err := spotify.ParseLink(cmd.Args().First())
	if nil != err {
		if errors.Is(err, spotify.ErrInvalidLink) {
			logger.Error().Msg("The link must be a Spotify album or playlist URL.")
			return exitCodeError(1)
		}

		return fmt.Errorf("parse link: %w", err)
	}

	relayClient := client.NewRelay(logger, conf.Client.RelayURL, conf.Client.DownloadsDir, conf.Downloader.Timeouts)

	catalog, store, err := newCatalogWith(logger, conf, relayClient)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := store.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close credential store")
		}
	}()

	collection, err := catalog.Collection(ctx, link)
	if nil != err {
		return fmt.Errorf("fetch collection: %w", err)
	}

	descriptors := collection.Tracks
	if n := cmd.Int("track"); n > 0 {
		picked, err := pickTrack(descriptors, int(n))
		if nil != err {
			logger.Error().Err(err).Msg("Invalid track number")
			return exitCodeError(1)
		}
		descriptors = picked
	}

	if cmd.Bool("tag") {
		relayClient.Tags = client.TagMeta{
			Enabled:  true,
			Album:    collection.Title,
			CoverURL: collection.CoverURL,
		}
	}

	renderCollection(os.Stdout, collection)

	orch := transfer.New(logger, relayClient, relayClient, newTerminalReporter(os.Stdout), transfer.Options{
		TrackDelay: conf.Client.TrackDelay.Duration,
		ResetDelay: conf.Client.ProgressResetDelay.Duration,
		Sleep:      nil,
	})

	if err := orch.Run(ctx, descriptors); nil != err {
		if errors.Is(err, transfer.ErrNoTracks) {
			logger.Error().Msg("The collection has no transferable tracks.")
			return exitCodeError(1)
		}

		return fmt.Errorf("run transfer: %w", err)
	}

	return nil
}

// pickTrack selects the nth non-header descriptor, matching the numbering
// the rendered listing shows.
func pickTrack(descriptors []types.TrackDescriptor, n int) ([]types.TrackDescriptor, error) {
	i := 0
	for _, d := range descriptors {
		if d.GroupHeader {
			continue
		}
		i++
		if i == n {
			return []types.TrackDescriptor{d}, nil
		}
	}

	return nil, fmt.Errorf("track number %d is out of range (1..%d)", n, i)
}

func newCatalog(logger zerolog.Logger, conf *config.Config) (*spotify.Client, *auth.Store, error) {
	relayClient := client.NewRelay(logger, conf.Client.RelayURL, conf.Client.DownloadsDir, conf.Downloader.Timeouts)
	return newCatalogWith(logger, conf, relayClient)
}

func newCatalogWith(logger zerolog.Logger, conf *config.Config, relayClient *client.Relay) (*spotify.Client, *auth.Store, error) {
	store, err := openStore(conf.Client.StateDir)
	if nil != err {
		return nil, nil, err
	}

	if _, err := store.Credentials(); nil != err {
		if closeErr := store.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close credential store")
		}

		if errors.Is(err, auth.ErrNoCredentials) {
			logger.Error().Msg("No stored credentials. Run the login command first.")
			return nil, nil, exitCodeError(2)
		}

		return nil, nil, fmt.Errorf("read credentials: %w", err)
	}

	broker := auth.NewBroker(logger, store, relayClient, conf.Client.TokenTTL.Duration)
	catalog := spotify.NewClient(logger, broker, conf.Downloader.Timeouts)

	return catalog, store, nil
}

func openStore(stateDir string) (*auth.Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); nil != err {
		return nil, fmt.Errorf("create state dir: %v", err)
	}

	store, err := auth.NewStore(filepath.Join(stateDir, "credentials.db"))
	if nil != err {
		return nil, fmt.Errorf("open credential store: %v", err)
	}

	return store, nil
}

func promptCredentials() (*auth.Credentials, error) {
	var clientID string
	//nolint:exhaustruct
	idPrompt := &survey.Input{
		Message: "Spotify Client ID:",
	}
	if err := survey.AskOne(idPrompt, &clientID, survey.WithValidator(survey.Required)); nil != err {
		return nil, fmt.Errorf("ask for client id: %v", err)
	}

	var clientSecret string
	//nolint:exhaustruct
	secretPrompt := &survey.Password{
		Message: "Spotify Client Secret:",
	}
	askOpts := []survey.AskOpt{
		survey.WithValidator(survey.Required),
		survey.WithHideCharacter('*'),
		survey.WithShowCursor(true),
	}
	if err := survey.AskOne(secretPrompt, &clientSecret, askOpts...); nil != err {
		return nil, fmt.Errorf("ask for client secret: %v", err)
	}

	return &auth.Credentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}
