package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/impactgen/internal/automation"
	"github.com/san-kum/impactgen/internal/config"
	"github.com/san-kum/impactgen/internal/experiment"
	"github.com/san-kum/impactgen/internal/export"
	"github.com/san-kum/impactgen/internal/metrics"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/space"
	"github.com/san-kum/impactgen/internal/storage"
	"github.com/san-kum/impactgen/internal/tui"
	"github.com/san-kum/impactgen/internal/viz"
)

var (
	logFile  string
	logLevel string

	configFile string
	host       string
	port       int
	seed       uint64
	maxTrials  int
	retries    int
	categories []string
	useTUI     bool

	columns []string
	pngPath string
	width   int
	height  int

	exportOut string
	workers   int

	layoutWidth  int
	layoutHeight int
)

var (
	log    = logrus.WithField("module", "main")
	logOut *os.File
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "impactgen",
		Short:         "collision trial generator for a driving simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logFile, logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "impactgen.log", "log file, previous one is kept as .1 (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml or toml)")

	generateCmd := &cobra.Command{
		Use:   "generate <sim-home> <output>",
		Short: "run collision trials and record sensor data",
		Args:  cobra.ExactArgs(2),
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringVar(&host, "host", config.DefaultHost, "simulator host")
	generateCmd.Flags().IntVar(&port, "port", config.DefaultPort, "simulator port")
	generateCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "random seed")
	generateCmd.Flags().IntVar(&maxTrials, "max-trials", 0, "stop after this many trials (0 runs until exhausted)")
	generateCmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "extra attempts per failed trial")
	generateCmd.Flags().StringSliceVar(&categories, "categories", nil, "crash categories to run")
	generateCmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress")

	spaceCmd := &cobra.Command{
		Use:   "space",
		Short: "show option space shapes per category",
		Args:  cobra.NoArgs,
		RunE:  showSpaces,
	}

	listCmd := &cobra.Command{
		Use:   "list <output>",
		Short: "list recorded trials",
		Args:  cobra.ExactArgs(1),
		RunE:  listTrials,
	}

	plotCmd := &cobra.Command{
		Use:   "plot <csv>",
		Short: "plot a recorded trial",
		Args:  cobra.ExactArgs(1),
		RunE:  plotTrial,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", []string{"airspeed", "damage"}, "columns to plot")
	plotCmd.Flags().StringVar(&pngPath, "png", "", "also write a png chart to this path")
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 12, "plot height")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in level presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListLevels() {
				geom, _ := config.GetLevel(name)
				layouts := lo.Keys(geom.Layouts)
				sort.Strings(layouts)
				fmt.Printf("%-12s %s\n", name, strings.Join(layouts, ", "))
			}
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <output>",
		Short: "export trials with crash metrics as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportTrials,
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file (- for stdout)")
	exportCmd.Flags().IntVar(&workers, "workers", 4, "concurrent file readers")

	layoutCmd := &cobra.Command{
		Use:   "layout [category...]",
		Short: "draw base poses of the configured level",
		RunE:  drawLayouts,
	}
	layoutCmd.Flags().IntVar(&layoutWidth, "width", 60, "drawing width")
	layoutCmd.Flags().IntVar(&layoutHeight, "height", 20, "drawing height")

	campaignCmd := &cobra.Command{
		Use:   "campaign <sim-home> <campaign.yaml> <output>",
		Short: "run a scripted sequence of generation steps",
		Args:  cobra.ExactArgs(3),
		RunE:  runCampaign,
	}

	rootCmd.AddCommand(generateCmd, campaignCmd, spaceCmd, listCmd, plotCmd, exportCmd, layoutCmd, presetsCmd)

	err := rootCmd.Execute()
	closeLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFailed.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func setupLogging(path, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".1"); err != nil {
			return fmt.Errorf("rotate log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	logOut = f
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// closeLogging points logrus back at stderr and closes the log file.
func closeLogging() {
	if logOut == nil {
		return
	}
	logrus.SetOutput(os.Stderr)
	if err := logOut.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
	logOut = nil
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configFile)
}

func checkHome(home string) error {
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		return fmt.Errorf("simulator home %q is not a directory", home)
	}
	return nil
}

func newClient(cfg *config.Config) session.Session {
	client := session.NewClient(cfg.Host, cfg.Port)
	client.Timeout = time.Duration(cfg.Timeout * float64(time.Second))
	return client
}

func runCampaign(cmd *cobra.Command, args []string) error {
	if err := checkHome(args[0]); err != nil {
		return err
	}
	c, err := automation.LoadCampaign(args[1])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("campaign %s: %d steps into %s", c.Name, len(c.Steps), args[2])
	sums, err := automation.RunCampaign(ctx, c, args[2], newClient, experiment.ObserverFunc(logEvent))
	for i, sum := range sums {
		fmt.Println(viz.Header.Render(fmt.Sprintf("step %d/%d", i+1, len(c.Steps))))
		fmt.Println(viz.RenderSummary(sum))
	}
	return err
}

func runGenerate(cmd *cobra.Command, args []string) error {
	home, output := args[0], args[1]
	if err := checkHome(home); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("max-trials") {
		cfg.MaxTrials = maxTrials
	}
	if cmd.Flags().Changed("retries") {
		cfg.Retries = retries
	}
	if cmd.Flags().Changed("categories") {
		cfg.Categories = categories
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store := storage.New(output)
	exp := experiment.New(cfg, newClient(cfg), store)

	log.WithFields(logrus.Fields{
		"home":       home,
		"output":     output,
		"simulator":  fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"categories": cfg.Categories,
		"seed":       cfg.Seed,
	}).Info("starting generation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sum *experiment.Summary
	if useTUI {
		// stderr would tear the alt screen
		if logOut != nil {
			logrus.SetOutput(logOut)
		} else {
			logrus.SetOutput(io.Discard)
		}
		sum, err = tui.RunProgress(ctx, exp, expectedTrials(cfg))
	} else {
		exp.AddObserver(experiment.ObserverFunc(logEvent))
		sum, err = exp.Run(ctx)
	}
	if sum != nil {
		fmt.Println(viz.RenderSummary(sum))
	}
	return err
}

func logEvent(e experiment.Event) {
	switch e.Kind {
	case experiment.EventTrialDone:
		if e.Meta != nil {
			fmt.Printf("%s %s  samples=%d impacted=%v\n",
				viz.StatusOK.Render("✓"), e.Trial, e.Meta.Samples, e.Meta.Impacted)
		}
	case experiment.EventTrialFailed:
		fmt.Printf("%s %s  attempt %d: %v\n", viz.StatusFailed.Render("✗"), e.Trial, e.Attempt, e.Err)
	case experiment.EventExhausted:
		fmt.Printf("%s %s space exhausted\n", viz.StatusWarn.Render("•"), e.Category)
	}
}

// expectedTrials is the progress bar denominator, 0 when it cannot be known.
func expectedTrials(cfg *config.Config) int {
	if cfg.MaxTrials > 0 {
		return cfg.MaxTrials
	}
	geom, err := cfg.ResolveGeometry()
	if err != nil {
		return 0
	}
	cats, err := experiment.NewRegistry().Build(cfg, geom)
	if err != nil {
		return 0
	}
	var total uint64
	for _, c := range cats {
		n := c.Space.Count()
		if !cfg.FullCoverage {
			n--
		}
		total += n
		if total > math.MaxInt32 {
			return 0
		}
	}
	return int(total)
}

func showSpaces(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	geom, err := cfg.ResolveGeometry()
	if err != nil {
		return err
	}
	cats, err := experiment.NewRegistry().Build(cfg, geom)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tAXES\tSHAPE\tCOUNT\tSTRATEGY")
	for _, c := range cats {
		shape := lo.Map(c.Space.Axes(), func(a space.Axis, _ int) string { return fmt.Sprint(len(a)) })
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n",
			c.Name,
			len(shape),
			strings.Join(shape, "x"),
			c.Space.Count(),
			c.Space.Strategy(),
		)
	}
	return w.Flush()
}

func listTrials(cmd *cobra.Command, args []string) error {
	trials, err := storage.New(args[0]).List()
	if err != nil {
		return err
	}
	if len(trials) == 0 {
		fmt.Println("no trials found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tTIME\tKMH\tANGLE\tSAMPLES\tIMPACT\tATTEMPTS\tERROR")
	for _, m := range trials {
		impact := "-"
		if m.Impacted {
			impact = fmt.Sprintf("%.2fs", m.ImpactTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1f\t%d\t%s\t%d\t%s\n",
			m.ID,
			m.Category,
			m.Timestamp.Format("2006-01-02 15:04:05"),
			m.TargetSpeed,
			m.Angle,
			m.Samples,
			impact,
			m.Attempts,
			m.Error,
		)
	}
	return w.Flush()
}

func plotTrial(cmd *cobra.Command, args []string) error {
	s, err := storage.LoadSeries(args[0])
	if err != nil {
		return err
	}

	graph, err := viz.Plot(s, columns, width, height)
	if err != nil {
		return err
	}
	fmt.Printf("trial: %s\n", args[0])
	fmt.Printf("samples: %d\n\n", s.Len())
	fmt.Println(graph)
	fmt.Println(viz.CrashMarkers(s, width))

	figures := metrics.Analyze(s)
	names := lo.Keys(figures)
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s %s  ", viz.MetricLabel.Render(name), viz.MetricValue.Render(fmt.Sprintf("%.3f", figures[name])))
	}
	fmt.Println()

	if pngPath != "" {
		if err := viz.SavePNG(s, columns, args[0], pngPath); err != nil {
			return err
		}
		fmt.Println(viz.Subtle.Render("wrote " + pngPath))
	}
	return nil
}

func exportTrials(cmd *cobra.Command, args []string) error {
	data, err := export.Collect(cmd.Context(), storage.New(args[0]), workers)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(exportOut, data); err != nil {
		return err
	}
	log.Infof("exported %d trials", data.Count)
	return nil
}

func drawLayouts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	geom, err := cfg.ResolveGeometry()
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = cfg.Categories
	}
	for _, name := range names {
		drawing, err := viz.DrawLayout(geom, name, layoutWidth, layoutHeight)
		if err != nil {
			return err
		}
		fmt.Println(viz.Header.Render(geom.Level + " / " + name))
		fmt.Println(viz.Panel.Render(strings.TrimRight(drawing, "\n")))
	}
	return nil
}
