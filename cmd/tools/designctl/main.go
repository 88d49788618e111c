// cmd/tools/designctl/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"schedule-designgen/internal/api"
	"schedule-designgen/internal/compiler"
	"schedule-designgen/internal/templates"
	"schedule-designgen/pkg/catalog"
)

var catalogPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, validateCmd, submitCmd} {
		fs.StringVar(&catalogPath, "catalog", "configs/templates.json", "Path to template catalog")
	}

	// Add command flags
	idAdd := addCmd.String("id", "", "Template ID (e.g., weekly-grid)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Weekly Grid)")
	owner := addCmd.String("owner", "", "Owner ID")
	sourceURL := addCmd.String("source", "", "Template file URL")
	layersURL := addCmd.String("layers", "", "Layer manifest URL")

	// Plan command flags
	manifestPath := planCmd.String("manifest", "", "Path to a layer manifest JSON file")
	planData := planCmd.String("data", "", "Path to schedule data JSON file")

	// Submit command flags
	server := submitCmd.String("server", "http://localhost:8080", "Design generator base URL")
	key := submitCmd.String("key", "", "Job key (source:range:template)")
	templateID := submitCmd.String("template", "", "Template ID from the catalog")
	submitData := submitCmd.String("data", "", "Path to schedule data JSON file")
	rangeStart := submitCmd.String("range", "", "Range start (YYYY-MM-DD)")
	force := submitCmd.Bool("force", false, "Render even when the cached design is current")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *sourceURL == "" || *layersURL == "" {
			fmt.Println("Error: id, source, and layers are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if *displayName == "" {
			*displayName = *idAdd
		}
		entry := catalog.Entry{
			Template: templates.Template{
				ID:        *idAdd,
				OwnerID:   *owner,
				SourceURL: *sourceURL,
				LayersURL: *layersURL,
			},
			DisplayName: *displayName,
		}
		if err := addTemplate(entry); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", *idAdd)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		c, err := catalog.Load(catalogPath)
		if err == nil {
			err = c.Validate()
		}
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed. Found %d templates.\n", len(c.Entries))

	case "plan":
		planCmd.Parse(os.Args[2:])
		if *manifestPath == "" || *planData == "" {
			fmt.Println("Error: manifest and data are required for plan.")
			planCmd.Usage()
			os.Exit(1)
		}
		if err := printPlan(*manifestPath, *planData); err != nil {
			fmt.Printf("Error compiling plan: %v\n", err)
			os.Exit(1)
		}

	case "submit":
		submitCmd.Parse(os.Args[2:])
		if *key == "" || *templateID == "" || *submitData == "" {
			fmt.Println("Error: key, template, and data are required for submit.")
			submitCmd.Usage()
			os.Exit(1)
		}
		req, err := buildSubmit(*key, *templateID, *submitData, *rangeStart, *force)
		if err == nil {
			err = postJob(*server, req)
		}
		if err != nil {
			fmt.Printf("Error submitting job: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addTemplate(entry catalog.Entry) error {
	c, err := catalog.Load(catalogPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c = catalog.New()
	}
	if err := c.Add(entry); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return c.Save(catalogPath)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// printPlan compiles the manifest against the data offline and prints the resulting operations.
func printPlan(manifestPath, dataPath string) error {
	var manifest templates.Manifest
	if err := readJSON(manifestPath, &manifest); err != nil {
		return err
	}
	var data map[string]interface{}
	if err := readJSON(dataPath, &data); err != nil {
		return err
	}

	plan := compiler.Compile(manifest.Layers, data, compiler.Options{})
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Printf("%d operations, %d assets to fetch\n", plan.OpCount(), len(plan.AssetRequests))
	return nil
}

func buildSubmit(key, templateID, dataPath, rangeStart string, force bool) (*api.SubmitRequest, error) {
	c, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	entry, ok := c.Find(templateID)
	if !ok {
		return nil, fmt.Errorf("template with ID %s not found", templateID)
	}

	var data map[string]interface{}
	if err := readJSON(dataPath, &data); err != nil {
		return nil, err
	}
	return &api.SubmitRequest{
		Key:          key,
		Template:     entry.Template,
		ScheduleData: data,
		RangeStart:   rangeStart,
		ForceRefresh: force,
	}, nil
}

func postJob(server string, req *api.SubmitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	endpoint, err := url.JoinPath(server, "jobs")
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)
	}
	fmt.Printf("Queued job %s\n", req.Key)
	return nil
}

func help() {
	fmt.Print(`
Usage: designctl <command> [flags]

Commands:
  add       Add a template to the catalog
  validate  Validate the catalog file
  plan      Compile a layer manifest against schedule data without rendering
  submit    Queue a design job on a running server
  help      Show this help message

Examples:
  designctl add -id weekly-grid -displayName "Weekly Grid" -source https://cdn.example.com/weekly.psd -layers https://cdn.example.com/weekly.json
  designctl validate -catalog configs/templates.json
  designctl plan -manifest weekly.json -data week.json
  designctl submit -key mindbody:2026-10-19:weekly-grid -template weekly-grid -data week.json -range 2026-10-19

Use 'designctl <command> -h' for more information about a command.

`)
}
