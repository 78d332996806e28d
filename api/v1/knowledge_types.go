/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	"errors"
	"fmt"
	"time"
)

type KnowledgeSource string

const (
	KnowledgeSourceInitial KnowledgeSource = "initial"
	KnowledgeSourceLearned KnowledgeSource = "learned"
	KnowledgeSourceManual  KnowledgeSource = "manual"
)

func (s KnowledgeSource) IsValid() bool {
	switch s {
	case KnowledgeSourceInitial, KnowledgeSourceLearned, KnowledgeSourceManual:
		return true
	}
	return false
}

// KnowledgeEntry is a reusable question/answer pair the agent can consult.
type KnowledgeEntry struct {
	ID        string          `json:"id"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Source    KnowledgeSource `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	UseCount  int64           `json:"use_count"`
	Version   int64           `json:"version"`
}

func (k *KnowledgeEntry) Validate() error {
	var errs []error
	if k.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if k.Question == "" {
		errs = append(errs, errors.New("question is required"))
	}
	if k.Answer == "" {
		errs = append(errs, errors.New("answer is required"))
	}
	if !k.Source.IsValid() {
		errs = append(errs, fmt.Errorf("invalid source %q", k.Source))
	}
	if k.UseCount < 0 {
		errs = append(errs, errors.New("use_count must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("knowledge entry %q: %w", k.ID, errors.Join(errs...))
	}
	return nil
}

func (k *KnowledgeEntry) DeepCopy() *KnowledgeEntry {
	if k == nil {
		return nil
	}
	out := *k
	return &out
}
