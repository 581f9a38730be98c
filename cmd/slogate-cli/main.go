package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/slogate/slogate/internal/slo"
)

func main() {
	os.Exit(realMain(os.Args))
}

func realMain(args []string) int {
	app := kingpin.New("slogate", "SLO engine companion CLI.")

	validateCmd := app.Command("validate", "Validate an SLO configuration file.")
	validateFile := validateCmd.Flag("file", "Configuration YAML file.").Required().String()
	validateSchema := validateCmd.Flag("schema", "JSON schema file.").Default("schemas/slo_v1.json").String()

	deployCmd := app.Command("can-deploy", "Query a running engine's deployment gate.")
	deployAddr := deployCmd.Flag("addr", "Engine base URL.").Default("http://localhost:8080").String()
	deployService := deployCmd.Flag("service", "Service name.").Required().String()
	deploySLO := deployCmd.Flag("slo", "SLO ID.").Required().String()
	deployChange := deployCmd.Flag("change-type", "Change type (feature, fix, security, data-loss-prevention, ...).").Required().String()

	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	switch cmd {
	case validateCmd.FullCommand():
		return runValidate(*validateFile, *validateSchema)
	case deployCmd.FullCommand():
		return runCanDeploy(*deployAddr, *deployService, *deploySLO, *deployChange)
	}
	return 2
}

func runValidate(file, schemaPath string) int {
	validator, err := slo.NewValidator(schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize validator: %v\n", err)
		return 2
	}

	_, errs := validator.ValidateFile(file)
	if len(errs) == 0 {
		fmt.Println("✓ configuration is valid")
		return 0
	}

	fmt.Fprintf(os.Stderr, "✗ validation failed with %d error(s):\n\n", len(errs))
	for _, e := range errs {
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", e.File, e.Path, e.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.File, e.Message)
		}
	}
	return 1
}

// runCanDeploy queries the gate and maps the decision to the exit code CI
// pipelines branch on: 0 allowed, 1 blocked, 2 query error.
func runCanDeploy(addr, service, sloID, changeType string) int {
	params := url.Values{}
	params.Set("service", service)
	params.Set("slo", sloID)
	params.Set("change_type", changeType)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(addr + "/policy/can_deploy?" + params.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: query failed: %v\n", err)
		return 2
	}
	defer resp.Body.Close()

	var decision struct {
		Allowed         bool    `json:"allowed"`
		Zone            string  `json:"zone"`
		BudgetRemaining float64 `json:"budget_remaining"`
		Degraded        bool    `json:"degraded"`
		Reason          string  `json:"reason"`
		Error           string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid response: %v\n", err)
		return 2
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", decision.Error)
		return 2
	}

	status := "BLOCKED"
	if decision.Allowed {
		status = "ALLOWED"
	}
	fmt.Printf("%s zone=%s budget_remaining=%.4f reason=%q\n",
		status, decision.Zone, decision.BudgetRemaining, decision.Reason)
	if decision.Degraded {
		fmt.Println("warning: decision based on missing telemetry (degraded observability)")
	}

	if decision.Allowed {
		return 0
	}
	return 1
}
