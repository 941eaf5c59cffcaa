package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Small dense matrix helpers. The filter state is 12-dimensional and the
// largest measurement block is 6, so plain slices beat setting up gonum
// types for every product; gonum is reserved for the SVD below.

func zeroMat(r, c int) [][]float64 {
	m := make([][]float64, r)
	for i := 0; i < r; i++ {
		m[i] = make([]float64, c)
	}
	return m
}

func identity(n int) [][]float64 {
	m := zeroMat(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
	}
	return m
}

func matAdd(a, b [][]float64) [][]float64 {
	out := zeroMat(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func matSub(a, b [][]float64) [][]float64 {
	out := zeroMat(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] - b[i][j]
		}
	}
	return out
}

func matMul(a, b [][]float64) [][]float64 {
	r := len(a)
	c := len(b[0])
	k := len(a[0])
	out := zeroMat(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for t := 0; t < k; t++ {
				sum += a[i][t] * b[t][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func matVec(a [][]float64, v []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		sum := 0.0
		for j := range v {
			sum += a[i][j] * v[j]
		}
		out[i] = sum
	}
	return out
}

func transpose(a [][]float64) [][]float64 {
	out := zeroMat(len(a[0]), len(a))
	for i := range a {
		for j := range a[i] {
			out[j][i] = a[i][j]
		}
	}
	return out
}

func symmetrize(a [][]float64) [][]float64 {
	out := zeroMat(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = 0.5 * (a[i][j] + a[j][i])
		}
	}
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func allFiniteMat(m [][]float64) bool {
	for i := range m {
		if !allFinite(m[i]) {
			return false
		}
	}
	return true
}

// pinv computes the Moore-Penrose pseudo-inverse via gonum's SVD. Used to
// invert the innovation covariance; SVD keeps the update bounded when a
// measurement block is redundant.
func pinv(a [][]float64) [][]float64 {
	r := len(a)
	if r == 0 {
		return [][]float64{}
	}
	c := len(a[0])

	data := make([]float64, 0, r*c)
	for _, row := range a {
		data = append(data, row...)
	}
	A := mat.NewDense(r, c, data)

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return zeroMat(c, r)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	maxS := 0.0
	if len(s) > 0 {
		maxS = s[0]
	}
	tol := 1e-15 * float64(maxInt(r, c)) * maxS

	sigInv := mat.NewDense(len(s), len(s), nil)
	for i, val := range s {
		if val > tol {
			sigInv.Set(i, i, 1.0/val)
		}
	}

	var tmp, res mat.Dense
	tmp.Mul(&v, sigInv)
	res.Mul(&tmp, u.T())

	rows, cols := res.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		copy(out[i], res.RawRowView(i))
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
