package competency

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowl-learning/wowl/internal/errs"
)

const sampleMath = `
subject: Math
domains: [operations, fractions]
competencies:
  - id: m1
    grade: "3"
    domain: operations
    skill: Multiply
    mastery_time_hours: 2
  - id: m2
    grade: 4
    domain: fractions
    skill: Fractions
    prerequisites: [m1]
    assessment_questions:
      - id: q1
        prompt: What is 1/2 + 1/4?
        answer: 3/4
`

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"math.yaml":  {Data: []byte(sampleMath)},
		"README.txt": {Data: []byte("ignored")},
	}
	c, err := LoadFS(fsys)
	require.NoError(t, err)

	m2, err := c.Get("m2")
	require.NoError(t, err)
	assert.Equal(t, SubjectMath, m2.Subject)
	assert.Equal(t, Grade(4), m2.Grade)
	assert.Equal(t, []string{"m1"}, m2.Prerequisites)
	require.Len(t, m2.AssessmentQuestions, 1)
	assert.Equal(t, "3/4", m2.AssessmentQuestions[0].Answer)
	assert.Equal(t, []string{"operations", "fractions"}, c.Domains(SubjectMath))
}

func TestLoadFS_PreKGrade(t *testing.T) {
	fsys := fstest.MapFS{"r.yaml": {Data: []byte(`
subject: reading
domains: [phonics]
competencies:
  - id: r1
    grade: PreK
    domain: phonics
    skill: Letters
`)}}
	c, err := LoadFS(fsys)
	require.NoError(t, err)
	r1, err := c.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, GradePreK, r1.Grade)
}

func TestLoadFS_Empty(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestLoadFS_BadYAML(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"x.yaml": {Data: []byte("subject: [unterminated")}})
	require.Error(t, err)
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "x.yaml", cfgErr.Source)
}

func TestLoadFS_MissingSubject(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"x.yaml": {Data: []byte("competencies: []")}})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math.yml"), []byte(sampleMath), 0o644))

	c, err := LoadDir(dir)
	require.NoError(t, err)
	assert.True(t, c.Has("m1"))

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
