package email

const (
	subjectNewLeadFmt          = "New Lead: %s - %s"
	subjectHighPriorityLeadFmt = "HIGH PRIORITY LEAD: %s - %s"
	subjectFollowUpFmt         = "Following up on %s"
)
