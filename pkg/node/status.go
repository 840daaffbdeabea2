package node

// Member is a mesh peer as seen by this node.
type Member struct {
    ID   string `json:"id"`
    Addr string `json:"addr,omitempty"`
    // Mgmt is the peer's management address when gossiped in metadata.
    Mgmt string `json:"mgmt,omitempty"`
}

// SubscriptionStatus describes one own subscription.
type SubscriptionStatus struct {
    Service  string `json:"service"`
    Key      string `json:"key"`
    Manager  string `json:"manager"`
    Messages int    `json:"messages"`
}

// ManagerStatus describes one service managed by this node.
type ManagerStatus struct {
    Key         string   `json:"key"`
    Subscribers []string `json:"subscribers"`
}

// Status is a JSON-serializable snapshot of the node suitable for the
// management /status endpoint and tooling.
type Status struct {
    // Healthy is true while the node runs and sees at least itself in the mesh.
    Healthy       bool                 `json:"healthy"`
    Self          Member               `json:"self"`
    Members       []Member             `json:"members"`
    Subscriptions []SubscriptionStatus `json:"subscriptions"`
    Managers      []ManagerStatus      `json:"managers"`
    // HealthScore is the mesh's awareness score (0 is best); -1 if unknown.
    HealthScore int      `json:"health_score"`
    Warnings    []string `json:"warnings,omitempty"`
}
