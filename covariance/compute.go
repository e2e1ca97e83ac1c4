package covariance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// Compute returns the k x k covariance of the coefficients fitted on the
// kept design X with residuals e, under policy p.
func Compute(X mat.Matrix, e mat.Vector, p Policy) (*mat.SymDense, error) {
	n, k := X.Dims()
	if e.Len() != n {
		return nil, &regerr.DimensionMismatchError{What: "residuals vs design rows", Expected: n, Actual: e.Len()}
	}
	if k == 0 {
		return nil, &regerr.DimensionMismatchError{What: "design columns", Expected: 1, Actual: 0}
	}

	// Validate the policy before any factorisation
	switch p := p.(type) {
	case NonRobust, HC1:
		if n <= k {
			return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
		}
	case NeweyWest:
		if p.Lags < 0 || p.Lags >= n {
			return nil, &regerr.InvalidLagSpecificationError{Lags: p.Lags, Observations: n}
		}
	case Clustered:
		if err := checkClusters(p.IDs, n, k); err != nil {
			return nil, err
		}
	case ClusteredTwoWay:
		if err := checkClusters(p.IDs1, n, k); err != nil {
			return nil, err
		}
		if err := checkClusters(p.IDs2, n, k); err != nil {
			return nil, err
		}
	case nil:
		return nil, fmt.Errorf("covariance policy is nil")
	}

	bread, err := Bread(X)
	if err != nil {
		return nil, err
	}

	switch p := p.(type) {
	case NonRobust:
		s2 := mat.Dot(e, e) / float64(n-k)
		out := mat.NewSymDense(k, nil)
		out.ScaleSym(s2, bread)
		return out, nil

	case HC0:
		return sandwich(bread, whiteMeat(X, e, nil)), nil

	case HC1:
		out := sandwich(bread, whiteMeat(X, e, nil))
		out.ScaleSym(float64(n)/float64(n-k), out)
		return out, nil

	case HC2, HC3, HC4:
		h := Leverage(X, bread)
		w := make([]float64, n)
		for i, hi := range h {
			w[i] = 1
			if hi >= maxLeverage {
				continue
			}
			switch p.(type) {
			case HC2:
				w[i] = 1 / (1 - hi)
			case HC3:
				w[i] = 1 / ((1 - hi) * (1 - hi))
			case HC4:
				delta := math.Min(4, float64(n)*hi/float64(k))
				w[i] = 1 / math.Pow(1-hi, delta)
			}
		}
		return sandwich(bread, whiteMeat(X, e, w)), nil

	case NeweyWest:
		return sandwich(bread, neweyWestMeat(X, e, p.Lags)), nil

	case Clustered:
		return clustered(X, e, bread, p.IDs), nil

	case ClusteredTwoWay:
		inter := intersect(p.IDs1, p.IDs2)
		if countClusters(inter) < 2 {
			return nil, &regerr.InvalidClusterSpecificationError{Observations: n, IDs: len(inter), Clusters: countClusters(inter)}
		}
		v1 := clustered(X, e, bread, p.IDs1)
		v2 := clustered(X, e, bread, p.IDs2)
		v12 := clustered(X, e, bread, inter)
		out := mat.NewSymDense(k, nil)
		out.AddSym(v1, v2)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				out.SetSym(i, j, out.At(i, j)-v12.At(i, j))
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported covariance policy %T", p)
}

func checkClusters(ids []int, n, k int) error {
	if len(ids) != n {
		return &regerr.InvalidClusterSpecificationError{Observations: n, IDs: len(ids)}
	}
	if g := countClusters(ids); g < 2 {
		return &regerr.InvalidClusterSpecificationError{Observations: n, IDs: len(ids), Clusters: g}
	}
	if n <= k {
		return &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}
	return nil
}

// sandwich returns bread * meat * bread, symmetrised against rounding.
func sandwich(bread mat.Symmetric, meat *mat.SymDense) *mat.SymDense {
	k := bread.SymmetricDim()
	var tmp, full mat.Dense
	tmp.Mul(bread, meat)
	full.Mul(&tmp, bread)

	out := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			out.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}
	return out
}

// whiteMeat is sum_i w_i e_i^2 x_i x_i'; nil w means unit weights.
func whiteMeat(X mat.Matrix, e mat.Vector, w []float64) *mat.SymDense {
	n, k := X.Dims()
	meat := mat.NewSymDense(k, nil)
	row := mat.NewVecDense(k, nil)
	for i := 0; i < n; i++ {
		ei := e.AtVec(i)
		s := ei * ei
		if w != nil {
			s *= w[i]
		}
		for j := 0; j < k; j++ {
			row.SetVec(j, X.At(i, j))
		}
		meat.SymRankOne(meat, s, row)
	}
	return meat
}

// scores returns the n x k matrix with rows e_i x_i'.
func scores(X mat.Matrix, e mat.Vector) *mat.Dense {
	n, k := X.Dims()
	u := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		ei := e.AtVec(i)
		for j := 0; j < k; j++ {
			u.Set(i, j, ei*X.At(i, j))
		}
	}
	return u
}

// neweyWestMeat adds Bartlett-weighted lagged cross-products of the scores
// to the White meat.
func neweyWestMeat(X mat.Matrix, e mat.Vector, lags int) *mat.SymDense {
	n, k := X.Dims()
	u := scores(X, e)

	var gamma0 mat.Dense
	gamma0.Mul(u.T(), u)
	meat := mat.DenseCopyOf(&gamma0)

	for l := 1; l <= lags; l++ {
		weight := 1 - float64(l)/float64(lags+1)

		// Gamma_l = sum_{t=l}^{n-1} u_t u_{t-l}'
		var gamma mat.Dense
		gamma.Mul(u.Slice(l, n, 0, k).T(), u.Slice(0, n-l, 0, k))

		var both mat.Dense
		both.Add(&gamma, gamma.T())
		both.Scale(weight, &both)
		meat.Add(meat, &both)
	}

	out := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			out.SetSym(i, j, (meat.At(i, j)+meat.At(j, i))/2)
		}
	}
	return out
}

// clustered is the one-way cluster sandwich with the G/(G-1) (n-1)/(n-k)
// correction. ids must already be validated.
func clustered(X mat.Matrix, e mat.Vector, bread mat.Symmetric, ids []int) *mat.SymDense {
	n, k := X.Dims()

	// Sum the scores within each cluster in first-appearance order
	index := make(map[int]int)
	var sums []*mat.VecDense
	for i := 0; i < n; i++ {
		g, ok := index[ids[i]]
		if !ok {
			g = len(sums)
			index[ids[i]] = g
			sums = append(sums, mat.NewVecDense(k, nil))
		}
		ei := e.AtVec(i)
		s := sums[g]
		for j := 0; j < k; j++ {
			s.SetVec(j, s.AtVec(j)+ei*X.At(i, j))
		}
	}

	meat := mat.NewSymDense(k, nil)
	for _, s := range sums {
		meat.SymRankOne(meat, 1, s)
	}

	G := float64(len(sums))
	factor := G / (G - 1) * float64(n-1) / float64(n-k)
	out := sandwich(bread, meat)
	out.ScaleSym(factor, out)
	return out
}

// intersect gives every distinct (ids1[i], ids2[i]) pair its own cluster id.
func intersect(ids1, ids2 []int) []int {
	type pair struct{ a, b int }
	keys := make(map[pair]int)
	out := make([]int, len(ids1))
	for i := range ids1 {
		p := pair{ids1[i], ids2[i]}
		id, ok := keys[p]
		if !ok {
			id = len(keys)
			keys[p] = id
		}
		out[i] = id
	}
	return out
}
