// Command contribute submits one contributor value to a collector.
//
// The value file holds the JSON wire form of a structured value,
// e.g. a float32 vector:
//
//	{"dtype": "float32", "shape": [3], "data": [1.0, 2.0, 3.0]}
//
// When --round is omitted, the collector's current round is used.
//
// # Usage
//
//	go run ./cmd/contribute --collector=http://localhost:8080 \
//	    --contributor=alice --value=value.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/flashbots/quantagg/services"
	"github.com/flashbots/quantagg/tensor"
)

func main() {
	var (
		collectorURL = flag.String("collector", "http://localhost:8080", "Collector base URL")
		contributor  = flag.String("contributor", "", "Contributor identifier")
		valuePath    = flag.String("value", "", "Path to JSON value file")
		round        = flag.Int("round", -1, "Round to contribute to (default: current)")
	)
	flag.Parse()

	if *contributor == "" || *valuePath == "" {
		fmt.Println("Error: --contributor and --value are required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*valuePath)
	if err != nil {
		fmt.Printf("Error reading value file: %v\n", err)
		os.Exit(1)
	}
	if _, err := tensor.UnmarshalValue(raw); err != nil {
		fmt.Printf("Error: value file is not a valid structured value: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	targetRound := *round
	if targetRound < 0 {
		targetRound, err = currentRound(client, *collectorURL)
		if err != nil {
			fmt.Printf("Error fetching collector status: %v\n", err)
			os.Exit(1)
		}
	}

	reqBody, err := json.Marshal(services.ContributionRequest{
		Round:         targetRound,
		ContributorID: *contributor,
		Value:         raw,
	})
	if err != nil {
		fmt.Printf("Error encoding contribution: %v\n", err)
		os.Exit(1)
	}

	resp, err := client.Post(*collectorURL+"/contributions", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		fmt.Printf("Error submitting contribution: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Collector rejected contribution (status %d): %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	fmt.Printf("Contribution accepted for round %d\n", targetRound)
}

func currentRound(client *http.Client, baseURL string) (int, error) {
	resp, err := client.Get(baseURL + "/status")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var status services.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, err
	}
	return status.CurrentRound, nil
}
