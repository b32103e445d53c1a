package models

import (
	"context"
	"sort"
	"strings"

	"llmperf/internal/api"
)

// TopModel is one ranked text generation model.
type TopModel struct {
	Organization string `json:"organization" yaml:"organization"`
	ModelName    string `json:"model_name" yaml:"model_name"`
	Downloads    int64  `json:"downloads" yaml:"downloads"`
}

// ID is "organization/model_name".
func (m TopModel) ID() string {
	if m.Organization == "" {
		return m.ModelName
	}
	return m.Organization + "/" + m.ModelName
}

// ModelLister lists hub models. *api.Client satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context, q api.ModelQuery) ([]api.ModelInfo, error)
}

// TopModels queries the hub for the n most downloaded text generation models.
// Entries without a downloads counter are dropped.
func TopModels(ctx context.Context, lister ModelLister, n int) ([]TopModel, error) {
	infos, err := lister.ListModels(ctx, api.ModelQuery{
		Filter:    "text-generation",
		Sort:      "downloads",
		Direction: -1,
		Limit:     n,
	})
	if err != nil {
		return nil, err
	}
	out := make([]TopModel, 0, len(infos))
	for _, info := range infos {
		if !info.HasDownloads() {
			continue
		}
		org, name := "", info.ID
		if i := strings.Index(info.ID, "/"); i >= 0 {
			org = info.ID[:i]
			name = info.ID[strings.LastIndex(info.ID, "/")+1:]
		}
		out = append(out, TopModel{Organization: org, ModelName: name, Downloads: info.Downloads})
	}
	return out, nil
}

// OrgDownloads is a per organization download total.
type OrgDownloads struct {
	Organization string `json:"organization" yaml:"organization"`
	Downloads    int64  `json:"downloads" yaml:"downloads"`
}

// RankOrganizations sums downloads per organization and returns the top
// limit entries, most downloaded first. limit <= 0 keeps all.
func RankOrganizations(models []TopModel, limit int) []OrgDownloads {
	totals := make(map[string]int64)
	for _, m := range models {
		totals[m.Organization] += m.Downloads
	}
	out := make([]OrgDownloads, 0, len(totals))
	for org, d := range totals {
		out = append(out, OrgDownloads{Organization: org, Downloads: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Downloads != out[j].Downloads {
			return out[i].Downloads > out[j].Downloads
		}
		return out[i].Organization < out[j].Organization
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
