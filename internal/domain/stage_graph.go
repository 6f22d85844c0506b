package domain

// StageEdge is a directed edge in the stage graph
type StageEdge struct {
	From ProjectStage
	To   ProjectStage
}

// stageGraph is the single source of truth for user-driven transitions.
// SUPER_ADMIN is not listed: it bypasses the table entirely.
var stageGraph = map[StageEdge]map[UserRoleType]bool{
	{StageLead, StageOnProgress}:          {RoleExecutive: true, RoleAdmin: true},
	{StageOnProgress, StageQuotationSent}: {RoleExecutive: true, RoleAdmin: true},
	{StageQuotationSent, StageInReview}:   {RoleExecutive: true, RoleAdmin: true},
	{StageInReview, StageOnboarded}:       {RoleExecutive: true, RoleAdmin: true},
	{StageSales, StageAccounts}:           {RoleSalesCoordinator: true, RoleAdmin: true},
	{StageAccounts, StageInstallation}:    {RoleAccounts: true, RoleAdmin: true},
	{StageInstallation, StageCompleted}:   {RoleInstallation: true, RoleAdmin: true},
}

// stageOwners maps each stage to its owning department. COMPLETED is absent
// on purpose: a completed project keeps whoever owned it last.
var stageOwners = map[ProjectStage]OwnerRole{
	StageLead:          OwnerExecutive,
	StageOnProgress:    OwnerExecutive,
	StageQuotationSent: OwnerExecutive,
	StageInReview:      OwnerExecutive,
	StageOnboarded:     OwnerSales,
	StageSales:         OwnerSales,
	StageAccounts:      OwnerAccounts,
	StageInstallation:  OwnerInstallation,
}

// lockingStages are the points of no return that set Project.IsLocked
var lockingStages = map[ProjectStage]bool{
	StageSales:     true,
	StageCompleted: true,
}

// CanTransition reports whether role may move a project from one stage to another
func CanTransition(role UserRoleType, from, to ProjectStage) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	roles, ok := stageGraph[StageEdge{From: from, To: to}]
	if !ok {
		return false
	}
	return roles[role]
}

// HasEdge reports whether the graph defines from -> to for any role
func HasEdge(from, to ProjectStage) bool {
	_, ok := stageGraph[StageEdge{From: from, To: to}]
	return ok
}

// Edges returns a copy of the stage graph, keyed by edge, listing permitted roles
func Edges() map[StageEdge][]UserRoleType {
	out := make(map[StageEdge][]UserRoleType, len(stageGraph))
	for edge, roles := range stageGraph {
		for _, r := range WorkflowRoles {
			if roles[r] {
				out[edge] = append(out[edge], r)
			}
		}
	}
	return out
}

// OwnerRoleFor returns the owner role for a stage. ok is false when the
// stage does not change ownership (COMPLETED).
func OwnerRoleFor(stage ProjectStage) (OwnerRole, bool) {
	owner, ok := stageOwners[stage]
	return owner, ok
}

// LocksProject reports whether entering the stage sets the lock flag
func LocksProject(stage ProjectStage) bool {
	return lockingStages[stage]
}

// Graph returns the stage graph in lifecycle order of the source stage
func Graph() StageGraphDTO {
	edges := Edges()
	out := StageGraphDTO{
		Stages: append([]ProjectStage(nil), AllStages...),
		Owners: make(map[ProjectStage]OwnerRole, len(stageOwners)),
	}
	for stage, owner := range stageOwners {
		out.Owners[stage] = owner
	}
	for _, from := range AllStages {
		for _, to := range AllStages {
			if roles, ok := edges[StageEdge{From: from, To: to}]; ok {
				out.Edges = append(out.Edges, StageEdgeDTO{From: from, To: to, Roles: roles})
			}
		}
	}
	return out
}
