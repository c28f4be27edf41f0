package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
	"property-marketplace/internal/importer"
)

// Checks the listing importer against a live page before enabling a new source

type CheckResult struct {
	CheckName string    `json:"checkName"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   any       `json:"details,omitempty"`
}

type CheckReport struct {
	SourceURL      string        `json:"sourceUrl"`
	Results        []CheckResult `json:"results"`
	OverallSuccess bool          `json:"overallSuccess"`
	ExecutedAt     time.Time     `json:"executedAt"`
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	sourceURL := os.Getenv("IMPORT_CHECK_URL")
	if len(os.Args) > 1 {
		sourceURL = os.Args[1]
	}
	if sourceURL == "" {
		log.Fatal("usage: import-check <listing-url> (or set IMPORT_CHECK_URL)")
	}

	cfg := config.DefaultConfig()
	cfg.Importer.RenderJS = os.Getenv("IMPORT_RENDER_JS") == "true"
	im := importer.NewImporter(cfg.Importer)

	report := &CheckReport{
		SourceURL:  sourceURL,
		ExecutedAt: time.Now(),
	}

	log.Println("============================================")
	log.Printf("Import check for %s", sourceURL)
	log.Println("============================================")

	// Check 1: three consecutive imports succeed
	stability, draft := checkStability(im, sourceURL)
	report.Results = append(report.Results, stability)

	if draft == nil {
		log.Println("[ERROR] No import succeeded, skipping remaining checks")
		saveReport(report)
		os.Exit(1)
	}

	// Check 2: the draft has the fields the submission form requires
	report.Results = append(report.Results, checkDraftFields(draft))

	// Check 3: the first image is reachable
	report.Results = append(report.Results, checkImageReference(draft.Draft.Images))

	report.OverallSuccess = true
	for _, result := range report.Results {
		if !result.Success {
			report.OverallSuccess = false
			break
		}
	}

	log.Println("============================================")
	for i, result := range report.Results {
		status := "PASS"
		if !result.Success {
			status = "FAIL"
		}
		log.Printf("%d. %s: %s", i+1, result.CheckName, status)
		log.Printf("   %s", result.Message)
	}
	log.Println("============================================")

	saveReport(report)

	if !report.OverallSuccess {
		os.Exit(1)
	}
}

func checkStability(im *importer.Importer, sourceURL string) (CheckResult, *importer.Result) {
	result := CheckResult{
		CheckName: "Import stability (3 consecutive successes)",
		Timestamp: time.Now(),
	}

	successCount := 0
	var last *importer.Result
	var lastError error

	for i := 1; i <= 3; i++ {
		log.Printf("  Attempt %d/3...", i)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		res, err := im.Import(ctx, sourceURL)
		cancel()
		if err != nil {
			log.Printf("  Attempt %d failed: %v", i, err)
			lastError = err
			continue
		}

		successCount++
		last = res

		// Pause between attempts to stay polite
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}

	result.Success = successCount == 3
	if result.Success {
		result.Message = fmt.Sprintf("3 consecutive imports succeeded (title %q)", last.Draft.Title)
	} else {
		result.Message = fmt.Sprintf("%d of 3 imports succeeded: %v", successCount, lastError)
	}
	result.Details = map[string]interface{}{"successCount": successCount}
	return result, last
}

func checkDraftFields(res *importer.Result) CheckResult {
	result := CheckResult{
		CheckName: "Draft completeness",
		Timestamp: time.Now(),
	}

	var missing []string
	if res.Draft.Title == "" {
		missing = append(missing, "title")
	}
	if res.Draft.Location == "" {
		missing = append(missing, "location")
	}
	if res.Draft.Price == 0 {
		missing = append(missing, "price")
	}

	result.Success = len(missing) == 0
	if result.Success {
		result.Message = "title, location and price were extracted"
	} else {
		result.Message = fmt.Sprintf("missing fields: %v", missing)
	}
	result.Details = res.Draft
	return result
}

func checkImageReference(images []string) CheckResult {
	result := CheckResult{
		CheckName: "Image reference",
		Timestamp: time.Now(),
	}
	if len(images) == 0 {
		result.Message = "no images found on the page"
		return result
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Head(images[0])
	if err != nil {
		result.Message = fmt.Sprintf("image request failed: %v", err)
		return result
	}
	resp.Body.Close()

	result.Success = resp.StatusCode == http.StatusOK
	result.Message = fmt.Sprintf("HEAD %s returned %d (%s)", images[0], resp.StatusCode, resp.Header.Get("Content-Type"))
	result.Details = map[string]interface{}{"imageCount": len(images)}
	return result
}

func saveReport(report *CheckReport) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal report: %v", err)
		return
	}

	filename := fmt.Sprintf("import_check_%s.json", time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		log.Printf("Failed to save report: %v", err)
		return
	}
	log.Printf("Report saved to %s", filename)
}
