package collinear

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// withIntercept builds an n x (len(cols)+1) matrix with a leading ones column.
func withIntercept(cols ...[]float64) *mat.Dense {
	n := len(cols[0])
	X := mat.NewDense(n, len(cols)+1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, c := range cols {
			X.Set(i, j+1, c[i])
		}
	}
	return X
}

func TestDetectFullRank(t *testing.T) {
	X := withIntercept(
		[]float64{1, 2, 3, 4, 5},
		[]float64{2, 1, 4, 3, 6},
	)
	rep := Detect(X, 0)
	assert.Equal(t, []int{0, 1, 2}, rep.Kept)
	assert.Empty(t, rep.Omitted)
	assert.Equal(t, 3, rep.Rank)
	for j, d := range rep.Diagonal {
		if d <= 0 {
			t.Errorf("Diagonal[%d] = %v; want > 0", j, d)
		}
	}
}

func TestDetectDuplicateColumn(t *testing.T) {
	tests := []struct {
		cols    [][]float64
		omitted []int
	}{
		// later duplicate of x1
		{[][]float64{{1, 2, 3, 4}, {4, 1, 0, 2}, {1, 2, 3, 4}}, []int{3}},
		// duplicate directly after
		{[][]float64{{3, 1, 4, 1}, {3, 1, 4, 1}, {2, 7, 1, 8}}, []int{2}},
		// scaled copy
		{[][]float64{{1, 5, 2, 8}, {9, 2, 6, 5}, {-2, -10, -4, -16}}, []int{3}},
	}

	for i, test := range tests {
		rep := Detect(withIntercept(test.cols...), DefaultTolerance)
		if diff := cmp.Diff(test.omitted, rep.Omitted); diff != "" {
			t.Errorf("Test %d: omitted mismatch (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestDetectSumOfColumns(t *testing.T) {
	x1 := []float64{1, 2, 3, 4, 5}
	x2 := []float64{2, 3, 4, 5, 6}
	x3 := []float64{3, 5, 7, 9, 11}

	names := []string{"Intercept", "x1", "x2", "x3"}
	clean, rep, err := Remove(withIntercept(x1, x2, x3), names, DefaultTolerance)
	require.NoError(t, err)

	// x2 = x1 + 1 is already dependent on the intercept and x1
	assert.Equal(t, []int{0, 1}, rep.Kept)
	assert.Equal(t, []int{2, 3}, rep.Omitted)
	assert.Equal(t, []string{"x2", "x3"}, rep.OmittedNames)

	r, c := clean.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
}

func TestDetectSumOfIndependentColumns(t *testing.T) {
	x1 := []float64{1, 2, 3, 4, 5, 6}
	x2 := []float64{2, 1, 5, 3, 8, 4}
	x3 := make([]float64, len(x1))
	for i := range x1 {
		x3[i] = x1[i] + x2[i]
	}

	_, rep, err := Remove(withIntercept(x1, x2, x3), []string{"Intercept", "x1", "x2", "x3"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Intercept", "x1", "x2"}, rep.KeptNames)
	assert.Equal(t, []string{"x3"}, rep.OmittedNames)
}

func TestDetectDummyTrap(t *testing.T) {
	male := []float64{1, 0, 1, 0, 1}
	female := []float64{0, 1, 0, 1, 0}

	_, rep, err := Remove(withIntercept(male, female), []string{"Intercept", "male", "female"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"female"}, rep.OmittedNames)
	assert.Equal(t, 2, rep.Rank)
}

func TestDetectTwoDisjointDependencies(t *testing.T) {
	x1 := []float64{1, 2, 3, 4, 5, 6, 7}
	x2 := []float64{3, 1, 4, 1, 5, 9, 2}
	x3 := make([]float64, len(x1))
	x4 := make([]float64, len(x1))
	for i := range x1 {
		x3[i] = x1[i] + x2[i]
		x4[i] = x1[i] - x2[i]
	}

	rep := Detect(withIntercept(x1, x2, x3, x4), 0)
	assert.Equal(t, []int{0, 1, 2}, rep.Kept)
	assert.Equal(t, []int{3, 4}, rep.Omitted)
}

func TestDetectZeroColumn(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 1,
		0, 2,
		0, 3,
	})
	rep := Detect(X, 0)
	assert.Equal(t, []int{1}, rep.Kept)
	assert.Equal(t, []int{0}, rep.Omitted)
}

func TestDetectMixedScale(t *testing.T) {
	d := []float64{0, 1, 1, 0, 1, 0, 0, 1}
	for i, scale := range []float64{1, 1e9, 1e12} {
		pop := []float64{1.2, 3.4, 2.2, 8.1, 5.5, 4.0, 6.7, 7.3}
		for r := range pop {
			pop[r] *= scale
		}
		rep := Detect(withIntercept(pop, d), DefaultTolerance)
		assert.Equal(t, []int{0, 1, 2}, rep.Kept, "Test %d", i+1)
		assert.Empty(t, rep.Omitted, "Test %d", i+1)

		// an exact combination across scales is still caught
		sum := make([]float64, len(pop))
		for r := range pop {
			sum[r] = pop[r] + 3*d[r]
		}
		rep = Detect(withIntercept(pop, d, sum), DefaultTolerance)
		if diff := cmp.Diff([]int{3}, rep.Omitted); diff != "" {
			t.Errorf("Test %d: omitted mismatch (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestDetectMoreColumnsThanRows(t *testing.T) {
	X := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		1, 5, 1, 2,
	})
	rep := Detect(X, 0)
	assert.Equal(t, 2, rep.Rank)
	assert.Equal(t, []int{0, 1}, rep.Kept)
}

func TestRemoveErrors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	_, _, err := Remove(X, []string{"a"}, 0)
	assert.ErrorIs(t, err, regerr.ErrDimensionMismatch)

	_, _, err = Remove(mat.NewDense(2, 2, nil), nil, 0)
	assert.ErrorIs(t, err, regerr.ErrSingular)
}

// ReadDirectory reads all files in a directory
func ReadDirectory(directory string) []os.DirEntry {
	files, err := os.ReadDir(directory)
	if err != nil {
		panic(fmt.Sprintf("Error reading directory %s: %v", directory, err))
	}
	return files
}

// skipComments reads lines from scanner, skipping comment lines starting with #
func skipComments(scanner *bufio.Scanner) string {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

type DetectTest struct {
	X       *mat.Dense
	Omitted []int
}

func ReadDetectTests(directory string) []DetectTest {
	inputFiles := ReadDirectory(directory + "input")
	outputFiles := ReadDirectory(directory + "output")

	if len(inputFiles) != len(outputFiles) {
		panic("Error: number of input and output files do not match!")
	}

	tests := make([]DetectTest, len(inputFiles))
	for i, inputFile := range inputFiles {
		tests[i].X = ReadDetectInput(directory + "input/" + inputFile.Name())
	}
	for i, outputFile := range outputFiles {
		tests[i].Omitted = ReadDetectOutput(directory + "output/" + outputFile.Name())
	}
	return tests
}

// ReadDetectInput reads "n k" followed by n rows of k values.
func ReadDetectInput(file string) *mat.Dense {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	dims := strings.Fields(skipComments(scanner))
	n, err1 := strconv.Atoi(dims[0])
	k, err2 := strconv.Atoi(dims[1])
	if err1 != nil || err2 != nil {
		panic(fmt.Sprintf("Error parsing dimensions in %s", file))
	}

	X := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		fields := strings.Fields(skipComments(scanner))
		if len(fields) != k {
			panic(fmt.Sprintf("Error: row %d of %s has %d values, want %d", i, file, len(fields), k))
		}
		for j, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				panic(fmt.Sprintf("Error parsing value %q: %v", s, err))
			}
			X.Set(i, j, v)
		}
	}
	return X
}

// ReadDetectOutput reads the omitted column indices; "-" means none.
func ReadDetectOutput(file string) []int {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := skipComments(scanner)
	if line == "-" {
		return nil
	}

	var omitted []int
	for _, s := range strings.Fields(line) {
		j, err := strconv.Atoi(s)
		if err != nil {
			panic(fmt.Sprintf("Error parsing index %q: %v", s, err))
		}
		omitted = append(omitted, j)
	}
	return omitted
}

func TestDetectFromFiles(t *testing.T) {
	tests := ReadDetectTests("testdata/Detect/")
	for i, test := range tests {
		rep := Detect(test.X, DefaultTolerance)
		if diff := cmp.Diff(test.Omitted, rep.Omitted); diff != "" {
			t.Errorf("Test %d: omitted mismatch (-want +got):\n%s", i+1, diff)
		}
		_, k := test.X.Dims()
		if rep.Rank != k-len(test.Omitted) {
			t.Errorf("Test %d: rank = %d; want %d", i+1, rep.Rank, k-len(test.Omitted))
		}
	}
}
