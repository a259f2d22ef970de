// Copyright 2025 Parley AI <dev@parley.chat>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDirectory is where run result documents are stored, one
// `<run_id>.json` file per run.
const DefaultDirectory = "results"

type Store struct {
	directory string
}

func NewStore(directory string) (*Store, error) {
	if directory == "" {
		directory = DefaultDirectory
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create the results directory %q: %w", directory, err)
	}
	return &Store{directory: directory}, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.directory, runID+".json")
}

func (s *Store) Save(runID string, document *Document) error {
	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize the run results: %w", err)
	}
	if err := os.WriteFile(s.path(runID), payload, 0o644); err != nil {
		return fmt.Errorf("unable to write the run results: %w", err)
	}
	return nil
}

func (s *Store) Load(runID string) (*Document, error) {
	payload, err := os.ReadFile(s.path(runID))
	if err != nil {
		return nil, fmt.Errorf("unable to read the results of run %q: %w", runID, err)
	}
	document := &Document{}
	if err := json.Unmarshal(payload, document); err != nil {
		return nil, fmt.Errorf("unable to parse the results of run %q: %w", runID, err)
	}
	return document, nil
}

// List returns the stored run ids in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("unable to list the results directory %q: %w", s.directory, err)
	}
	runIDs := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runIDs = append(runIDs, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(runIDs)
	return runIDs, nil
}
