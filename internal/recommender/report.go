package recommender

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Recommendations is a ranked result list.
type Recommendations []Recommendation

func (r Recommendations) Len() int {
	return len(r)
}

// ReportByCompany groups the results by company keeping rank order inside each group.
func (r Recommendations) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, rec := range r {
		key := fmt.Sprintf("%s (%s)", rec.Company, rec.Location)
		report[key] = append(report[key], map[string]string{
			"title":              rec.InternshipTitle,
			"minimum experience": rec.MinimumExperience,
			"matched skills":     strings.Join(rec.MatchedSkills, ", "),
			"missing skills":     strings.Join(rec.MissingSkills, ", "),
			"final score":        fmt.Sprintf("%.4f", rec.FinalScore),
			"match":              fmt.Sprintf("%.2f%%", rec.MatchPercentage),
		})
	}
	return report
}

func (r Recommendations) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "recommendations_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
