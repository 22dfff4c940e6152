package shared

// Background task types
const (
	TypeDeleteBookImage       = "book:delete_image"
	TypeSweepOrphanBookImages = "book:sweep_orphan_images"
)

// Queue names
const (
	QueueMaintenance = "maintenance"
	QueueDefault     = "default"
)

// DeleteImagePayload carries a blob key whose synchronous removal failed.
type DeleteImagePayload struct {
	Key string `json:"key"`
}

// SweepOrphanImagesPayload is empty; the sweep always inspects the whole store.
type SweepOrphanImagesPayload struct{}
