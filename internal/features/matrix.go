package features

// Matrix is a dense Steps x Coeffs feature matrix stored row-major.
type Matrix struct {
	Steps  int
	Coeffs int
	Data   []float32
}

// NewMatrix allocates a zeroed matrix.
func NewMatrix(steps, coeffs int) Matrix {
	return Matrix{Steps: steps, Coeffs: coeffs, Data: make([]float32, steps*coeffs)}
}

// At returns the coefficient c of time step t.
func (m Matrix) At(t, c int) float32 {
	return m.Data[t*m.Coeffs+c]
}

// Row returns time step t. The slice aliases the matrix storage.
func (m Matrix) Row(t int) []float32 {
	return m.Data[t*m.Coeffs : (t+1)*m.Coeffs]
}
