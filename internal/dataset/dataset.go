// Package dataset loads internship and resume records and derives the
// popularity tables used as ranking features.
package dataset

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/skills"
)

// Column names of the internship table.
const (
	ColumnTitle             = "Internship_Title"
	ColumnCompany           = "Company_Name"
	ColumnLocation          = "Location"
	ColumnMinimumExperience = "Minimum_Experience"
	ColumnRequiredSkills    = "Required_Skills"
	ColumnPreferredSkills   = "Preferred_Skills"

	// ColumnSkills is the only column read from the resume table.
	ColumnSkills = "Skills"
)

const (
	defaultLocation   = "N/A"
	defaultExperience = "0"
)

var (
	requiredInternshipColumns = []string{ColumnTitle, ColumnCompany, ColumnRequiredSkills, ColumnPreferredSkills}
	requiredResumeColumns     = []string{ColumnSkills}
)

type Internship struct {
	Title             string   `json:"internship_title"`
	Company           string   `json:"company"`
	Location          string   `json:"location"`
	MinimumExperience string   `json:"minimum_experience"`
	RequiredSkills    []string `json:"required_skills"`
	PreferredSkills   []string `json:"preferred_skills"`
}

type Internships struct {
	Items []*Internship
}

type Resume struct {
	Skills []string `json:"skills"`
}

// Bundle keeps the loaded records together with derived statistics.
type Bundle struct {
	Internships *Internships
	Resumes     []*Resume
	Popularity  Popularity
}

// Popularity holds frequency encodings of categorical internship metadata.
type Popularity struct {
	Company map[string]float64
	Title   map[string]float64
}

func (p Popularity) CompanyScore(company string) float64 {
	return p.Company[company]
}

func (p Popularity) TitleScore(title string) float64 {
	return p.Title[title]
}

// NewBundle derives popularity tables from the internships and wraps everything
// into a Bundle.
func NewBundle(internships *Internships, resumes []*Resume) *Bundle {
	if internships == nil {
		internships = &Internships{}
	}
	return &Bundle{
		Internships: internships,
		Resumes:     resumes,
		Popularity:  internships.Popularity(),
	}
}

func (in *Internships) Len() int {
	return len(in.Items)
}

// RequiredSkillLists returns the required skills of every internship in corpus order.
func (in *Internships) RequiredSkillLists() [][]string {
	lists := make([][]string, 0, len(in.Items))
	for _, item := range in.Items {
		lists = append(lists, item.RequiredSkills)
	}
	return lists
}

// Popularity computes the share of internships per company and per title.
func (in *Internships) Popularity() Popularity {
	p := Popularity{
		Company: make(map[string]float64),
		Title:   make(map[string]float64),
	}
	total := float64(len(in.Items))
	if total == 0 {
		return p
	}

	for _, item := range in.Items {
		p.Company[item.Company]++
		p.Title[item.Title]++
	}
	for k, v := range p.Company {
		p.Company[k] = v / total
	}
	for k, v := range p.Title {
		p.Title[k] = v / total
	}
	return p
}

// table is a header plus string rows, the common shape of every source.
type table struct {
	name    string
	columns []string
	rows    [][]string
}

func (t *table) has(column string) bool {
	for _, c := range t.columns {
		if c == column {
			return true
		}
	}
	return false
}

func (t *table) validate(required []string) error {
	var missing []string
	for _, column := range required {
		if !t.has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return apperr.Newf(apperr.ErrDatasetMalformed, "%s: missing columns %s", t.name, strings.Join(missing, ", "))
	}
	return nil
}

// records returns every row as a column -> cell map. Short rows are padded
// with empty cells.
func (t *table) records() []map[string]string {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		record := make(map[string]string, len(t.columns))
		for idx, column := range t.columns {
			value := ""
			if idx < len(row) {
				value = row[idx]
			}
			record[column] = value
		}
		out = append(out, record)
	}
	return out
}

type internshipRow struct {
	Title             string `mapstructure:"Internship_Title"`
	Company           string `mapstructure:"Company_Name"`
	Location          string `mapstructure:"Location"`
	MinimumExperience string `mapstructure:"Minimum_Experience"`
	RequiredSkills    string `mapstructure:"Required_Skills"`
	PreferredSkills   string `mapstructure:"Preferred_Skills"`
}

type resumeRow struct {
	Skills string `mapstructure:"Skills"`
}

func decodeInternships(t *table) (*Internships, error) {
	if err := t.validate(requiredInternshipColumns); err != nil {
		return nil, err
	}

	hasLocation := t.has(ColumnLocation)
	hasExperience := t.has(ColumnMinimumExperience)

	internships := &Internships{Items: make([]*Internship, 0, len(t.rows))}
	for idx, record := range t.records() {
		if !hasLocation {
			record[ColumnLocation] = defaultLocation
		}
		if !hasExperience {
			record[ColumnMinimumExperience] = defaultExperience
		}

		var row internshipRow
		if err := mapstructure.Decode(record, &row); err != nil {
			return nil, apperr.Newf(apperr.ErrDatasetMalformed, "%s: row %d: %v", t.name, idx+1, err)
		}

		internships.Items = append(internships.Items, &Internship{
			Title:             strings.TrimSpace(row.Title),
			Company:           strings.TrimSpace(row.Company),
			Location:          strings.TrimSpace(row.Location),
			MinimumExperience: strings.TrimSpace(row.MinimumExperience),
			RequiredSkills:    skills.Parse(row.RequiredSkills),
			PreferredSkills:   skills.Parse(row.PreferredSkills),
		})
	}

	return internships, nil
}

func decodeResumes(t *table) ([]*Resume, error) {
	if err := t.validate(requiredResumeColumns); err != nil {
		return nil, err
	}

	resumes := make([]*Resume, 0, len(t.rows))
	for idx, record := range t.records() {
		var row resumeRow
		if err := mapstructure.Decode(record, &row); err != nil {
			return nil, apperr.Newf(apperr.ErrDatasetMalformed, "%s: row %d: %v", t.name, idx+1, err)
		}
		resumes = append(resumes, &Resume{Skills: skills.Parse(row.Skills)})
	}

	return resumes, nil
}
