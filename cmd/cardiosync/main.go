package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cardiosync/internal/models"
	"cardiosync/pkg/analysis"
	"cardiosync/pkg/config"
	"cardiosync/pkg/export"
	"cardiosync/pkg/loader"
	"cardiosync/pkg/report"
	"cardiosync/pkg/store"
)

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Input recording (.csv or .json)")
	demo := flag.Bool("demo", false, "Analyze a synthetic demo recording instead of a file")
	roiStart := flag.Float64("roi-start", 0, "ROI start in seconds from the recording start")
	roiEnd := flag.Float64("roi-end", 0, "ROI end in seconds (default: end of recording)")
	sampleRate := flag.Float64("fs", 0, "Sample rate in Hz for CSV files without a time column")
	timeCol := flag.String("time-col", "", "CSV time column name (default: auto-detect)")
	ecgCol := flag.String("ecg-col", "", "CSV ECG column name (default: auto-detect)")
	ppgCol := flag.String("ppg-col", "", "CSV PPG column name (default: auto-detect)")
	auxCol := flag.String("aux-col", "", "CSV auxiliary column name (default: auto-detect)")
	configPath := flag.String("config", "", "YAML configuration file (default: built-in defaults)")
	initConfig := flag.String("init-config", "", "Write the default configuration to this path and exit")
	filterMode := flag.String("filter", "", "Filter mode override: default, ppg_only or off")
	outDir := flag.String("out", "results", "Output directory for exports")
	doExport := flag.Bool("export", false, "Write segment CSV, metrics JSON and PNG plots")
	doReport := flag.Bool("report", false, "Write an interactive HTML report")
	dbPath := flag.String("db", "", "SQLite database for archiving runs")
	history := flag.Int("history", 0, "List the N most recent archived runs and exit (requires -db)")
	quiet := flag.Bool("quiet", false, "Suppress stage progress output")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	if *history > 0 {
		if *dbPath == "" {
			log.Fatal("-history requires -db")
		}
		if err := printHistory(*dbPath, *history); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	if *input == "" && !*demo {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *filterMode != "" {
		cfg.Filter.Mode = *filterMode
	}
	if *quiet {
		cfg.Output.Verbose = false
	}

	fmt.Println("================================")
	fmt.Println("CARDIOSYNC: ECG/PPG ROI SYNCHRONIZATION AND EVENT ANALYSIS")
	fmt.Println("================================")

	// Load the recording.
	var rec *models.Recording
	if *demo {
		fmt.Println("Generating synthetic demo recording...")
		rec = loader.Synthetic(loader.DefaultSynthetic())
	} else {
		fmt.Printf("Loading %s...\n", *input)
		rec, err = loader.Load(*input, loader.CSVOptions{
			TimeColumn: *timeCol,
			ECGColumn:  *ecgCol,
			PPGColumn:  *ppgCol,
			AuxColumn:  *auxCol,
			SampleRate: *sampleRate,
		})
		if err != nil {
			log.Fatalf("Failed to load recording: %v", err)
		}
	}

	roi := models.ROI{Start: *roiStart, End: *roiEnd}
	if roi.End <= roi.Start {
		roi.End = rec.ECG.StartTime + rec.ECG.Duration()
	}

	params, err := analysis.ParamsFromConfig(cfg, roi)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	// Run the analysis pipeline.
	fmt.Printf("Analyzing ROI [%.2fs, %.2fs)...\n", roi.Start, roi.End)
	startTime := time.Now()
	res, err := analysis.New(params).Process(rec)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	fmt.Printf("\nAnalysis completed in %.2f seconds\n\n", time.Since(startTime).Seconds())

	printSummary(res)

	if *doExport {
		base := exportBase(rec.Source)
		written, err := export.SaveAll(res, *outDir, base)
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Println("\nExported files:")
		for _, path := range written {
			fmt.Printf("- %s\n", path)
		}
	}

	if *doReport {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			log.Fatalf("Failed to create output dir: %v", err)
		}
		path := filepath.Join(*outDir, exportBase(rec.Source)+"_report.html")
		if err := report.WriteFile(res, path); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
		fmt.Printf("\nHTML report saved to: %s\n", path)
	}

	if *dbPath != "" {
		s, err := store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer s.Close()
		id, err := s.SaveRun(res)
		if err != nil {
			log.Fatalf("Failed to archive run: %v", err)
		}
		fmt.Printf("\nRun archived as %s\n", id)
	}
}

// printSummary writes the metrics block to stdout.
func printSummary(res *analysis.Result) {
	fmt.Printf("Results for %s:\n", res.Source)
	fmt.Printf("=======================================\n")
	fmt.Printf("Common grid: %g Hz, %d samples\n", res.SampleRate, res.NumSamples)
	fmt.Printf("R-peaks: %d, pulse peaks: %d\n", len(res.ECG.Peaks), len(res.PPG.Peaks))
	fmt.Printf("Heart rate (ECG): %s bpm\n", fmtMetric(res.ECG.Rate.BPM, 1))
	fmt.Printf("Pulse rate (PPG): %s bpm\n", fmtMetric(res.PPG.Rate.BPM, 1))

	fmt.Printf("\nHeart rate variability:\n")
	fmt.Printf("- SDNN:  %s ms\n", fmtMetric(res.HRV.SDNN*1000, 1))
	fmt.Printf("- RMSSD: %s ms\n", fmtMetric(res.HRV.RMSSD*1000, 1))
	fmt.Printf("- pNN50: %s %%\n", fmtMetric(res.HRV.PNN50*100, 1))
	fmt.Printf("- LF/HF: %s\n", fmtMetric(res.HRV.LFHF, 2))

	fmt.Printf("\nPulse transit time (%d pairs):\n", res.PTT.Count)
	fmt.Printf("- mean: %s ms, SD: %s ms\n",
		fmtMetric(res.PTT.Mean*1000, 1), fmtMetric(res.PTT.SD*1000, 1))
	fmt.Printf("Cross-correlation delay: %s ms (r=%s)\n",
		fmtMetric(res.DelaySec*1000, 1), fmtMetric(res.DelayCorr, 3))

	fmt.Printf("\nSignal quality:\n")
	fmt.Printf("- ECG: saturation %.3f, flatness %.3f, SNR-like %.1f\n",
		res.ECG.SQI.Saturation, res.ECG.SQI.Flatness, res.ECG.SQI.SNRLike)
	fmt.Printf("- PPG: saturation %.3f, flatness %.3f, SNR-like %.1f\n",
		res.PPG.SQI.Saturation, res.PPG.SQI.Flatness, res.PPG.SQI.SNRLike)

	if res.ECG.Template != nil {
		fmt.Printf("\nECG template: %d beats, mean r=%.3f, mean DTW=%.3f\n",
			len(res.ECG.Template.Beats), res.ECG.Template.MeanCorrelation, res.ECG.Template.MeanDTW)
	}
	if res.PPG.Template != nil {
		fmt.Printf("PPG template: %d beats, mean r=%.3f, mean DTW=%.3f\n",
			len(res.PPG.Template.Beats), res.PPG.Template.MeanCorrelation, res.PPG.Template.MeanDTW)
	}
}

func printHistory(dbPath string, limit int) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-12s  %-14s  %-8s  %-10s\n",
		"ID", "CREATED", "SOURCE", "ROI", "HR", "PTT")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %-12s  [%.1f,%.1f)s  %s bpm  %s ms\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Source,
			r.ROIStart, r.ROIEnd, fmtMetric(r.BPM, 1), fmtMetric(r.PTTMean*1000, 1))
	}
	return nil
}

// fmtMetric renders NaN metrics as "n/a".
func fmtMetric(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

// exportBase derives a file name stem from the recording source.
func exportBase(source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "run"
	}
	return base
}
