package dashboard

import (
	"sort"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// PartitionByLocation groups readings by exact location tag. Each partition
// is sorted oldest to newest; equal timestamps fall back to id order.
func PartitionByLocation(readings []models.Reading) map[string][]models.Reading {
	partitions := make(map[string][]models.Reading)
	for _, r := range readings {
		partitions[r.Location] = append(partitions[r.Location], r)
	}

	for _, p := range partitions {
		sort.SliceStable(p, func(i, j int) bool {
			if p[i].Timestamp.Equal(p[j].Timestamp) {
				return p[i].ID < p[j].ID
			}
			return p[i].Timestamp.Before(p[j].Timestamp)
		})
	}

	return partitions
}

// Latest returns the newest reading of an ascending partition
func Latest(partition []models.Reading) (models.Reading, bool) {
	if len(partition) == 0 {
		return models.Reading{}, false
	}
	return partition[len(partition)-1], true
}

// Average returns the mean value of the given readings, false when empty
func Average(readings ...models.Reading) (float64, bool) {
	if len(readings) == 0 {
		return 0, false
	}

	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings)), true
}
