package filters

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay implements local polynomial regression smoothing
//
// References:
//   - Savitzky, A., Golay, M.J.E. (1964). "Smoothing and Differentiation of
//     Data by Simplified Least Squares Procedures"
//
// Interior samples are convolved with the least-squares coefficients of a
// centered window. The first and last half-windows are handled by fitting a
// single polynomial to the first (last) full window and evaluating it at the
// edge positions, the same edge treatment as scipy's "interp" mode.
type SavitzkyGolay struct {
	windowSize   int
	order        int
	coefficients []float64
}

// NewSavitzkyGolay creates a smoother; windowSize must be odd and greater than order
func NewSavitzkyGolay(windowSize, order int) (*SavitzkyGolay, error) {
	if windowSize <= 0 || windowSize%2 == 0 {
		return nil, fmt.Errorf("window size must be a positive odd number, got %d", windowSize)
	}
	if order < 0 || order >= windowSize {
		return nil, fmt.Errorf("polynomial order %d must be in [0, %d)", order, windowSize)
	}

	sg := &SavitzkyGolay{
		windowSize: windowSize,
		order:      order,
	}

	coeffs, err := sg.centerCoefficients()
	if err != nil {
		return nil, err
	}
	sg.coefficients = coeffs

	return sg, nil
}

// WindowSize returns the smoothing window length
func (sg *SavitzkyGolay) WindowSize() int {
	return sg.windowSize
}

// GetCoefficients returns a copy of the centered convolution coefficients
func (sg *SavitzkyGolay) GetCoefficients() []float64 {
	coeffs := make([]float64, len(sg.coefficients))
	copy(coeffs, sg.coefficients)
	return coeffs
}

// vandermonde builds the design matrix A[i][j] = x_i^j
func vandermonde(positions []float64, order int) *mat.Dense {
	a := mat.NewDense(len(positions), order+1, nil)
	for i, x := range positions {
		for j := 0; j <= order; j++ {
			a.Set(i, j, math.Pow(x, float64(j)))
		}
	}
	return a
}

// centerCoefficients returns the row of (AᵀA)⁻¹Aᵀ that yields the fitted
// polynomial's constant term, i.e. its value at the window center
func (sg *SavitzkyGolay) centerCoefficients() ([]float64, error) {
	half := sg.windowSize / 2
	positions := make([]float64, sg.windowSize)
	for i := range positions {
		positions[i] = float64(i - half)
	}

	a := vandermonde(positions, sg.order)

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("savitzky-golay normal matrix: %w", err)
	}

	var proj mat.Dense
	proj.Mul(&inv, a.T())

	return mat.Row(nil, 0, &proj), nil
}

// fitPolynomial solves the least-squares polynomial through ys sampled at
// positions 0..len(ys)-1
func (sg *SavitzkyGolay) fitPolynomial(ys []float64) ([]float64, error) {
	positions := make([]float64, len(ys))
	for i := range positions {
		positions[i] = float64(i)
	}

	a := vandermonde(positions, sg.order)
	b := mat.NewVecDense(len(ys), append([]float64(nil), ys...))

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("savitzky-golay edge fit: %w", err)
	}

	return coeffs.RawVector().Data, nil
}

func polyval(coeffs []float64, x float64) float64 {
	y := 0.0
	for j := len(coeffs) - 1; j >= 0; j-- {
		y = y*x + coeffs[j]
	}
	return y
}

// Apply smooths signal and returns a new slice. The signal must be at least
// one window long.
func (sg *SavitzkyGolay) Apply(signal []float64) ([]float64, error) {
	n := len(signal)
	if n < sg.windowSize {
		return nil, fmt.Errorf("signal length (%d) shorter than window size (%d)", n, sg.windowSize)
	}

	half := sg.windowSize / 2
	out := make([]float64, n)

	for i := half; i < n-half; i++ {
		sum := 0.0
		for k, c := range sg.coefficients {
			sum += c * signal[i-half+k]
		}
		out[i] = sum
	}

	head, err := sg.fitPolynomial(signal[:sg.windowSize])
	if err != nil {
		return nil, err
	}
	for i := 0; i < half; i++ {
		out[i] = polyval(head, float64(i))
	}

	tail, err := sg.fitPolynomial(signal[n-sg.windowSize:])
	if err != nil {
		return nil, err
	}
	for i := 0; i < half; i++ {
		pos := sg.windowSize - half + i
		out[n-half+i] = polyval(tail, float64(pos))
	}

	return out, nil
}
