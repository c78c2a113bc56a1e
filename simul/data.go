package main

// generateObservations deterministically fills the submission of each provider with values in [0, maxValue).
func generateObservations(providers, observations int, maxValue, seed int64) [][]int64 {
	data := make([][]int64, providers)
	state := uint64(seed)*6364136223846793005 + 1442695040888963407
	for i := range data {
		data[i] = make([]int64, observations)
		for j := range data[i] {
			state = state*6364136223846793005 + 1442695040888963407
			data[i][j] = int64((state >> 33) % uint64(maxValue))
		}
	}
	return data
}

// expectedMean returns the clear sum and count of the observations.
func expectedMean(data [][]int64) (int64, int64) {
	var sum, count int64
	for _, values := range data {
		for _, v := range values {
			sum += v
			count++
		}
	}
	return sum, count
}
