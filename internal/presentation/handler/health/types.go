package health

// healthResponse reports service liveness plus a coarse activity signal
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Rooms     int    `json:"rooms"`
}
