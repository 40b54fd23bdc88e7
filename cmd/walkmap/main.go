package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-walkmap/internal/api"
	"github.com/joeblew999/plat-walkmap/internal/config"
	"github.com/joeblew999/plat-walkmap/internal/server"
)

// Options defines all CLI flags and env vars for the walkmap server.
// Flags: --host, --port, --data-dir, --web-dir, --config, --dev
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_CONFIG, SERVICE_DEV
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for payloads, schemes and the database" default:".data"`
	WebDir  string `doc:"Path to web/ directory" default:"web"`
	Config  string `doc:"Path to walkmap.yaml (default ./walkmap.yaml if present)" short:"c"`
	Dev     bool   `doc:"Re-read HTML fragments from disk on every render"`
}

// newServer loads the map configuration, sets up logging and builds the
// server. Commands that do not serve HTTP use a private in-memory database.
func newServer(opts *Options, serving bool) (*server.Server, error) {
	app, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(app.Log); err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		App:        app,
		InMemoryDB: !serving,
		Dev:        opts.Dev,
	})
}

func mustServer(opts *Options, serving bool) *server.Server {
	srv, err := newServer(opts, serving)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server

		hooks.OnStart(func() {
			srv = mustServer(opts, true)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-walkmap server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				zap.L().Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			if srv != nil {
				closeLogged(srv)
			}
			zap.L().Sync()
		})
	})

	cli.Root().Use = "walkmap"
	cli.Root().Short = "Walking access map: travel-time choropleth server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts, false)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// render subcommand: colored GeoJSON for a selection
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Write the payload as GeoJSON with tt and fill set for a selection",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts, false)
			defer srv.Close()
			svc := srv.Services()

			selectFlag, _ := cmd.Flags().GetString("select")
			schemeID, _ := cmd.Flags().GetString("scheme")
			if schemeID == "" {
				schemeID = svc.DefaultScheme
			}

			scheme, err := svc.Scheme.Scheme(schemeID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !svc.TravelTime.Loaded() {
				fmt.Fprintln(os.Stderr, "Error: no travel-time payload loaded")
				os.Exit(1)
			}

			sel := svc.TravelTime.DefaultSelection(svc.DefaultDestination)
			if cmd.Flags().Changed("select") {
				sel = svc.TravelTime.Normalize(api.ParseSelection(selectFlag))
			}

			data, err := svc.TravelTime.Collection(scheme, sel).MarshalJSON()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding GeoJSON: %v\n", err)
				os.Exit(1)
			}
			os.Stdout.Write(data)
			fmt.Println()
		}),
	}
	renderCmd.Flags().StringP("select", "s", "", "Comma-separated destinations (default: configured default destination)")
	renderCmd.Flags().String("scheme", "", "Scheme ID (default: configured scheme)")
	cli.Root().AddCommand(renderCmd)

	// classify subcommand: color and label per value
	classifyCmd := &cobra.Command{
		Use:   "classify <value>...",
		Short: "Print the color and legend label for each value",
		Args:  cobra.MinimumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts, false)
			defer srv.Close()
			svc := srv.Services()

			schemeID, _ := cmd.Flags().GetString("scheme")
			if schemeID == "" {
				schemeID = svc.DefaultScheme
			}
			scheme, err := svc.Scheme.Scheme(schemeID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			for _, arg := range args {
				v := parseValue(arg)
				fmt.Printf("%s\t%s\t%s\n", arg, scheme.Classify(v), scheme.LabelFor(v))
			}
		}),
	}
	classifyCmd.Flags().String("scheme", "", "Scheme ID (default: configured scheme)")
	cli.Root().AddCommand(classifyCmd)

	cli.Run()
}

// closeLogged closes c and logs a failure instead of dropping it.
func closeLogged(c io.Closer) {
	if err := c.Close(); err != nil {
		zap.L().Warn("server close failed", zap.Error(err))
	}
}

// parseValue reads a CLI argument as a number when it parses as one, and as a
// category key otherwise.
func parseValue(arg string) any {
	if f, err := strconv.ParseFloat(strings.TrimSpace(arg), 64); err == nil {
		return f
	}
	return arg
}
