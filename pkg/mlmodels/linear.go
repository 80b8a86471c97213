package mlmodels

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LinearRegression fits ordinary least squares through a QR decomposition.
type LinearRegression struct {
	coef      []float64
	intercept float64
	nFeatures int
}

// NewLinearRegression returns an unfitted OLS model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves the least-squares system with an intercept column.
func (l *LinearRegression) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n, p := len(X), len(X[0])
	data := make([]float64, n*(p+1))
	for i, row := range X {
		data[i*(p+1)] = 1
		copy(data[i*(p+1)+1:], row)
	}
	a := mat.NewDense(n, p+1, data)
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return fmt.Errorf("solving least squares: %w", err)
	}
	l.intercept = sol.AtVec(0)
	l.coef = make([]float64, p)
	for j := 0; j < p; j++ {
		l.coef[j] = sol.AtVec(j + 1)
	}
	l.nFeatures = p
	return nil
}

// Predict applies the fitted linear map.
func (l *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if l.coef == nil {
		return nil, ErrNotFitted
	}
	return applyLinear(X, l.coef, l.intercept, l.nFeatures)
}

// Coefficients returns the fitted slope per feature.
func (l *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), l.coef...)
}

// Ridge fits L2-regularized least squares in closed form on centered data;
// the intercept is not penalized.
type Ridge struct {
	Alpha float64 `json:"alpha"`

	coef      []float64
	intercept float64
	nFeatures int
}

// NewRidge returns a ridge model with the given penalty.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

// Fit solves (XcT Xc + alpha I) beta = XcT yc on centered columns.
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n, p := len(X), len(X[0])
	xMean, yMean := columnMeans(X), meanOf(y)

	gram := mat.NewDense(p, p, nil)
	rhs := mat.NewVecDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			var s float64
			for i := 0; i < n; i++ {
				s += (X[i][j] - xMean[j]) * (X[i][k] - xMean[k])
			}
			gram.Set(j, k, s)
			gram.Set(k, j, s)
		}
		gram.Set(j, j, gram.At(j, j)+r.Alpha)
		var s float64
		for i := 0; i < n; i++ {
			s += (X[i][j] - xMean[j]) * (y[i] - yMean)
		}
		rhs.SetVec(j, s)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(gram, rhs); err != nil {
		return fmt.Errorf("solving ridge system: %w", err)
	}
	r.coef = make([]float64, p)
	r.intercept = yMean
	for j := 0; j < p; j++ {
		r.coef[j] = sol.AtVec(j)
		r.intercept -= r.coef[j] * xMean[j]
	}
	r.nFeatures = p
	return nil
}

// Predict applies the fitted linear map.
func (r *Ridge) Predict(X [][]float64) ([]float64, error) {
	if r.coef == nil {
		return nil, ErrNotFitted
	}
	return applyLinear(X, r.coef, r.intercept, r.nFeatures)
}

// Hyperparameters reports the live penalty.
func (r *Ridge) Hyperparameters() map[string]float64 {
	return map[string]float64{"alpha": r.Alpha}
}

// Lasso fits L1-regularized least squares by cyclic coordinate descent on
// centered data.
type Lasso struct {
	Alpha   float64 `json:"alpha"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`

	coef      []float64
	intercept float64
	nFeatures int
}

// NewLasso returns a lasso model with the given penalty.
func NewLasso(alpha float64) *Lasso {
	return &Lasso{Alpha: alpha, MaxIter: 1000, Tol: 1e-6}
}

// Fit runs coordinate descent with soft thresholding.
func (l *Lasso) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n, p := len(X), len(X[0])
	xMean, yMean := columnMeans(X), meanOf(y)

	xc := make([][]float64, n)
	residual := make([]float64, n)
	for i := range X {
		xc[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			xc[i][j] = X[i][j] - xMean[j]
		}
		residual[i] = y[i] - yMean
	}
	colNorm := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colNorm[j] += xc[i][j] * xc[i][j]
		}
	}

	coef := make([]float64, p)
	threshold := l.Alpha * float64(n)
	maxIter := defaultInt(l.MaxIter, 1000)
	for iter := 0; iter < maxIter; iter++ {
		var maxDelta float64
		for j := 0; j < p; j++ {
			if colNorm[j] == 0 {
				continue
			}
			var rho float64
			for i := 0; i < n; i++ {
				rho += xc[i][j] * (residual[i] + xc[i][j]*coef[j])
			}
			updated := softThreshold(rho, threshold) / colNorm[j]
			if delta := updated - coef[j]; delta != 0 {
				for i := 0; i < n; i++ {
					residual[i] -= delta * xc[i][j]
				}
				if math.Abs(delta) > maxDelta {
					maxDelta = math.Abs(delta)
				}
				coef[j] = updated
			}
		}
		if maxDelta < l.Tol {
			break
		}
	}

	l.coef = coef
	l.intercept = yMean
	for j := 0; j < p; j++ {
		l.intercept -= coef[j] * xMean[j]
	}
	l.nFeatures = p
	return nil
}

// Predict applies the fitted linear map.
func (l *Lasso) Predict(X [][]float64) ([]float64, error) {
	if l.coef == nil {
		return nil, ErrNotFitted
	}
	return applyLinear(X, l.coef, l.intercept, l.nFeatures)
}

// Hyperparameters reports the live penalty.
func (l *Lasso) Hyperparameters() map[string]float64 {
	return map[string]float64{"alpha": l.Alpha, "max_iter": float64(l.MaxIter)}
}

func softThreshold(x, threshold float64) float64 {
	switch {
	case x > threshold:
		return x - threshold
	case x < -threshold:
		return x + threshold
	default:
		return 0
	}
}

func applyLinear(X [][]float64, coef []float64, intercept float64, nFeatures int) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), nFeatures)
		}
		v := intercept
		for j, c := range coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out, nil
}

func columnMeans(X [][]float64) []float64 {
	p := len(X[0])
	means := make([]float64, p)
	for _, row := range X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(X))
	}
	return means
}

func meanOf(y []float64) float64 {
	var s float64
	for _, v := range y {
		s += v
	}
	return s / float64(len(y))
}
