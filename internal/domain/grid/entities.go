package grid

// FloorTile tracks whether one cell's floor has been cleaned.
type FloorTile struct {
	Coordinate Coordinate `json:"coordinate"`
	Clean      bool       `json:"clean"`
}

// Obstacle marks impassable terrain, including the grid border.
type Obstacle struct {
	Coordinate Coordinate `json:"coordinate"`
}

// Station is a recharge point for cleaning agents.
type Station struct {
	Coordinate Coordinate `json:"coordinate"`
}
