package service

import "taskhub/internal/microservices/http-api/models"

// TaskAssignees is the assignment snapshot of one task.
type TaskAssignees struct {
	UserIDs []string
	Groups  []GroupMembers
}

// GroupMembers lists the members of one collaborator group assigned to a task.
type GroupMembers struct {
	GroupID string
	UserIDs []string
}

// AssigneesFromTask flattens a task loaded with its users and groups.
func AssigneesFromTask(task *models.Task) TaskAssignees {
	assignees := TaskAssignees{
		UserIDs: make([]string, 0, len(task.Users)),
		Groups:  make([]GroupMembers, 0, len(task.Groups)),
	}
	for _, u := range task.Users {
		assignees.UserIDs = append(assignees.UserIDs, u.ID)
	}
	for _, g := range task.Groups {
		members := GroupMembers{GroupID: g.ID, UserIDs: make([]string, 0, len(g.Users))}
		for _, u := range g.Users {
			members.UserIDs = append(members.UserIDs, u.ID)
		}
		assignees.Groups = append(assignees.Groups, members)
	}
	return assignees
}

// ResolveRecipients returns (direct assignees ∪ group members) minus the author.
// Each user appears once, in first-seen order: direct assignees, then groups in order.
// Blank ids are skipped. An empty result is not an error.
func ResolveRecipients(assignees TaskAssignees, authorID string) []string {
	seen := make(map[string]struct{})
	recipients := make([]string, 0, len(assignees.UserIDs))

	add := func(id string) {
		if id == "" || id == authorID {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	for _, id := range assignees.UserIDs {
		add(id)
	}
	for _, g := range assignees.Groups {
		for _, id := range g.UserIDs {
			add(id)
		}
	}
	return recipients
}
