package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/internship-recommender/internal/apperr"
)

const internshipsCSV = `Internship_Title,Company_Name,Location,Minimum_Experience,Required_Skills,Preferred_Skills
Data Intern,Acme,Berlin,0,"Python, SQL, python","Pandas"
Frontend Intern,Acme,Remote,1,"Python,React",
Backend Intern,Globex,,2,"Java, Spring","Docker, Kubernetes"
Data Intern,Initech,Paris,0,,
`

func TestReadInternshipsCSV(t *testing.T) {
	t.Parallel()

	internships, err := ReadInternshipsCSV("internships.csv", strings.NewReader(internshipsCSV))
	require.NoError(t, err)
	require.Equal(t, 4, internships.Len())

	first := internships.Items[0]
	assert.Equal(t, "Data Intern", first.Title)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Berlin", first.Location)
	assert.Equal(t, []string{"python", "sql"}, first.RequiredSkills)
	assert.Equal(t, []string{"pandas"}, first.PreferredSkills)

	assert.Equal(t, []string{}, internships.Items[1].PreferredSkills)
	assert.Equal(t, "", internships.Items[2].Location)
	assert.Equal(t, []string{}, internships.Items[3].RequiredSkills)

	assert.Equal(t, [][]string{
		{"python", "sql"},
		{"python", "react"},
		{"java", "spring"},
		{},
	}, internships.RequiredSkillLists())
}

func TestReadInternshipsCSVDefaultsOptionalColumns(t *testing.T) {
	t.Parallel()

	data := "Internship_Title,Company_Name,Required_Skills,Preferred_Skills\nIntern,Acme,Go,\n"
	internships, err := ReadInternshipsCSV("internships.csv", strings.NewReader(data))
	require.NoError(t, err)

	item := internships.Items[0]
	assert.Equal(t, "N/A", item.Location)
	assert.Equal(t, "0", item.MinimumExperience)
}

func TestReadInternshipsCSVMissingColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "missing required skills", data: "Internship_Title,Company_Name,Preferred_Skills\nA,B,C\n"},
		{name: "empty file", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadInternshipsCSV("internships.csv", strings.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrDatasetMalformed)
		})
	}
}

func TestReadResumesCSV(t *testing.T) {
	t.Parallel()

	data := "Name,Skills\nAnna,\"Python, SQL\"\nBob,\nCarl\n"
	resumes, err := ReadResumesCSV("resumes.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, resumes, 3)
	assert.Equal(t, []string{"python", "sql"}, resumes[0].Skills)
	assert.Empty(t, resumes[1].Skills)
	assert.Empty(t, resumes[2].Skills)

	_, err = ReadResumesCSV("resumes.csv", strings.NewReader("Name\nAnna\n"))
	assert.ErrorIs(t, err, apperr.ErrDatasetMalformed)
}

func TestPopularity(t *testing.T) {
	t.Parallel()

	internships, err := ReadInternshipsCSV("internships.csv", strings.NewReader(internshipsCSV))
	require.NoError(t, err)

	p := internships.Popularity()
	assert.InDelta(t, 0.5, p.CompanyScore("Acme"), 1e-12)
	assert.InDelta(t, 0.25, p.CompanyScore("Globex"), 1e-12)
	assert.InDelta(t, 0.5, p.TitleScore("Data Intern"), 1e-12)
	assert.Equal(t, 0.0, p.CompanyScore("Unknown"))

	empty := (&Internships{}).Popularity()
	assert.Empty(t, empty.Company)
	assert.Empty(t, empty.Title)
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	internshipsPath := filepath.Join(dir, "internships.csv")
	resumesPath := filepath.Join(dir, "resumes.csv")
	require.NoError(t, os.WriteFile(internshipsPath, []byte("\ufeff"+internshipsCSV), 0o644))
	require.NoError(t, os.WriteFile(resumesPath, []byte("Skills\n\"python, sql\"\n"), 0o644))

	bundle, err := LoadCSV(internshipsPath, resumesPath)
	require.NoError(t, err)
	assert.Equal(t, 4, bundle.Internships.Len())
	assert.Len(t, bundle.Resumes, 1)
	assert.InDelta(t, 0.5, bundle.Popularity.CompanyScore("Acme"), 1e-12)

	_, err = LoadCSV(filepath.Join(dir, "absent.csv"), resumesPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dataset.db")
	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE internships (Internship_Title TEXT, Company_Name TEXT, Location TEXT, Minimum_Experience INTEGER, Required_Skills TEXT, Preferred_Skills TEXT)`,
		`INSERT INTO internships VALUES ('Data Intern', 'Acme', 'Berlin', 0, 'Python, SQL', NULL)`,
		`INSERT INTO internships VALUES ('Backend Intern', 'Globex', NULL, 2, 'Java, Spring', 'Docker')`,
		`CREATE TABLE resumes (id INTEGER PRIMARY KEY, Skills TEXT)`,
		`INSERT INTO resumes (Skills) VALUES ('java, spring')`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	bundle, err := LoadSQLite(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, bundle.Internships.Len())

	first := bundle.Internships.Items[0]
	assert.Equal(t, []string{"python", "sql"}, first.RequiredSkills)
	assert.Equal(t, []string{}, first.PreferredSkills)
	assert.Equal(t, "0", first.MinimumExperience)
	assert.Equal(t, "", bundle.Internships.Items[1].Location)
	assert.Equal(t, "2", bundle.Internships.Items[1].MinimumExperience)

	require.Len(t, bundle.Resumes, 1)
	assert.Equal(t, []string{"java", "spring"}, bundle.Resumes[0].Skills)
}

func TestLoadSQLiteMissingTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dataset.db")
	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE resumes (Skills TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = LoadSQLite(context.Background(), path)
	assert.ErrorIs(t, err, apperr.ErrDatasetMalformed)
}

func TestOpenSQLiteHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "dataset.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "file.csv")
	assert.Equal(t, abs, ResolvePath(abs))
	assert.Equal(t, "", ResolvePath(""))
	assert.Equal(t, "does/not/exist.csv", ResolvePath("does/not/exist.csv"))
}
