package operations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/backup/types"

	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
)

const serviceBackup = "backup"

var vaultNotFound = capability.ErrorRule{
	Code:     "ResourceNotFoundException",
	Message:  `Backup vault "{BackupVaultName}" does not exist.`,
	Reprompt: true,
}

type backupOps struct {
	c Clients
}

func backupOperations(c Clients) []*capability.Operation {
	b := backupOps{c: c}
	api := c.Backup

	createVault := &capability.Operation{
		Name:        "create_backup_vault",
		Description: "Create a backup vault unless one with the same name exists.",
		Requires:    []capability.Requirement{capability.Need("BackupVaultName", "")},
		Label:       `Backup vault "{BackupVaultName}" was created`,
		ResultKey:   "BackupVaultArn",
		FailLabel:   `Error occurred while creating backup vault with name "{BackupVaultName}"`,
		Execute:     call(api, awsapi.BackupAPI.CreateBackupVault),
		Handle:      b.vaultPrecheck,
	}
	deleteSelection := &capability.Operation{
		Name:        "delete_backup_selection",
		Description: "Delete a backup selection from a plan.",
		Requires: []capability.Requirement{
			capability.Need("BackupPlanId", ""),
			capability.Need("SelectionId", ""),
		},
		Label:   `Backup selection "{SelectionId}" was deleted from plan "{BackupPlanId}"`,
		Execute: call(api, awsapi.BackupAPI.DeleteBackupSelection),
	}

	ops := []*capability.Operation{
		createVault,
		{
			Name:        "create_logically_air_gapped_backup_vault",
			Description: "Create a logically air-gapped backup vault unless the name is taken.",
			Requires: []capability.Requirement{
				capability.Need("BackupVaultName", ""),
				capability.Need("MinRetentionDays", ""),
				capability.Need("MaxRetentionDays", ""),
			},
			Label:     `Logically air-gapped backup vault "{BackupVaultName}" was created`,
			ResultKey: "BackupVaultArn",
			FailLabel: `Error occurred while creating logically air-gapped backup vault with name "{BackupVaultName}"`,
			Execute:   call(api, awsapi.BackupAPI.CreateLogicallyAirGappedBackupVault),
			Handle:    b.vaultPrecheck,
		},
		{
			Name:        "create_backup_plan",
			Description: "Create a backup plan, creating any missing target vaults first.",
			Requires: []capability.Requirement{
				capability.Need("BackupPlan.BackupPlanName", ""),
				capability.Need("BackupPlan.Rules", ""),
			},
			Label:     `Backup plan "{BackupPlan.BackupPlanName}" was created`,
			ResultKey: "BackupPlanId",
			FailLabel: `Error occurred while creating backup plan with name "{BackupPlan.BackupPlanName}"`,
			Execute:   call(api, awsapi.BackupAPI.CreateBackupPlan),
			Handle: func(ctx context.Context, t *capability.Turn) error {
				return b.createPlan(ctx, t, createVault)
			},
		},
		{
			Name:        "update_backup_plan",
			Description: "Update an existing backup plan, creating any missing target vaults first.",
			Requires: []capability.Requirement{
				capability.Need("BackupPlanId", ""),
				capability.Need("BackupPlan.BackupPlanName", ""),
			},
			Label:     `Backup plan "{BackupPlan.BackupPlanName}" was updated`,
			ResultKey: "VersionId",
			FailLabel: `Error occurred while updating backup plan with name "{BackupPlan.BackupPlanName}"`,
			Execute:   call(api, awsapi.BackupAPI.UpdateBackupPlan),
			Handle: func(ctx context.Context, t *capability.Turn) error {
				return b.updatePlan(ctx, t, createVault)
			},
		},
		{
			Name:        "create_backup_selection",
			Description: "Assign resources to a backup plan unless the selection name is taken.",
			Requires: []capability.Requirement{
				capability.Need("BackupPlanId", ""),
				capability.Need("BackupSelection.SelectionName", ""),
				capability.Need("BackupSelection.IamRoleArn", ""),
			},
			Label:     `Backup selection "{BackupSelection.SelectionName}" was created`,
			ResultKey: "SelectionId",
			Execute:   call(api, awsapi.BackupAPI.CreateBackupSelection),
			Handle:    b.selectionPrecheck,
		},
		{
			Name:      "list_backup_vaults",
			PageKey:   "MaxResults",
			Label:     "List of backup vaults",
			ResultKey: "BackupVaultList",
			Execute:   call(api, awsapi.BackupAPI.ListBackupVaults),
		},
		{
			Name:      "list_protected_resources",
			PageKey:   "MaxResults",
			Label:     "List of protected resources",
			ResultKey: "Results",
			Execute:   call(api, awsapi.BackupAPI.ListProtectedResources),
		},
		{
			Name:      "list_protected_resources_by_backup_vault",
			Requires:  []capability.Requirement{capability.Need("BackupVaultName", "")},
			PageKey:   "MaxResults",
			Label:     `List of resources protected in backup vault "{BackupVaultName}"`,
			ResultKey: "Results",
			Errors:    []capability.ErrorRule{vaultNotFound},
			Execute:   call(api, awsapi.BackupAPI.ListProtectedResourcesByBackupVault),
		},
		{
			Name:      "list_backup_jobs",
			PageKey:   "MaxResults",
			Label:     "List of backup jobs",
			ResultKey: "BackupJobs",
			Execute:   call(api, awsapi.BackupAPI.ListBackupJobs),
		},
		{
			Name:      "list_backup_plans",
			PageKey:   "MaxResults",
			Label:     "List of backup plans",
			ResultKey: "BackupPlansList",
			Execute:   call(api, awsapi.BackupAPI.ListBackupPlans),
		},
		{
			Name:      "list_backup_selections",
			Requires:  []capability.Requirement{capability.Need("BackupPlanId", "")},
			PageKey:   "MaxResults",
			Label:     `List of backup selections of plan "{BackupPlanId}"`,
			ResultKey: "BackupSelectionsList",
			Execute:   call(api, awsapi.BackupAPI.ListBackupSelections),
		},
		{
			Name:     "get_backup_plan",
			Requires: []capability.Requirement{capability.Need("BackupPlanId", "")},
			Label:    `Backup plan "{BackupPlanId}"`,
			Execute:  call(api, awsapi.BackupAPI.GetBackupPlan),
		},
		{
			Name: "get_backup_selection",
			Requires: []capability.Requirement{
				capability.Need("BackupPlanId", ""),
				capability.Need("SelectionId", ""),
			},
			Label:     `Backup selection "{SelectionId}"`,
			ResultKey: "BackupSelection",
			Execute:   call(api, awsapi.BackupAPI.GetBackupSelection),
		},
		{
			Name:        "delete_backup_plan",
			Description: "Delete a backup plan after deleting its selections.",
			Requires:    []capability.Requirement{capability.Need("BackupPlanId", "")},
			Label:       `Backup plan "{BackupPlanId}" was deleted`,
			ResultKey:   "DeletionDate",
			Execute:     call(api, awsapi.BackupAPI.DeleteBackupPlan),
			Handle: func(ctx context.Context, t *capability.Turn) error {
				return b.deletePlan(ctx, t, deleteSelection)
			},
		},
		deleteSelection,
		{
			Name: "create_legal_hold",
			Requires: []capability.Requirement{
				capability.Need("Title", ""),
				capability.Need("Description", ""),
			},
			Label:     `Legal hold "{Title}" was created`,
			ResultKey: "LegalHoldArn",
			Execute:   call(api, awsapi.BackupAPI.CreateLegalHold),
		},
		{
			Name:      "list_legal_holds",
			PageKey:   "MaxResults",
			Label:     "List of legal holds",
			ResultKey: "LegalHolds",
			Execute:   call(api, awsapi.BackupAPI.ListLegalHolds),
		},
		{
			Name:     "get_legal_hold",
			Requires: []capability.Requirement{capability.Need("LegalHoldId", "")},
			Label:    `Legal hold "{LegalHoldId}"`,
			Execute:  call(api, awsapi.BackupAPI.GetLegalHold),
		},
		{
			Name: "cancel_legal_hold",
			Requires: []capability.Requirement{
				capability.Need("LegalHoldId", ""),
				capability.Need("CancelDescription", ""),
			},
			Label:   `Legal hold "{LegalHoldId}" was canceled`,
			Execute: call(api, awsapi.BackupAPI.CancelLegalHold),
		},
		{
			Name:      "list_recovery_points_by_backup_vault",
			Requires:  []capability.Requirement{capability.Need("BackupVaultName", "")},
			PageKey:   "MaxResults",
			Label:     `List of recovery points in backup vault "{BackupVaultName}"`,
			ResultKey: "RecoveryPoints",
			Errors:    []capability.ErrorRule{vaultNotFound},
			Execute:   call(api, awsapi.BackupAPI.ListRecoveryPointsByBackupVault),
		},
		{
			Name:      "list_recovery_points_by_legal_hold",
			Requires:  []capability.Requirement{capability.Need("LegalHoldId", "")},
			PageKey:   "MaxResults",
			Label:     `List of recovery points under legal hold "{LegalHoldId}"`,
			ResultKey: "RecoveryPoints",
			Execute:   call(api, awsapi.BackupAPI.ListRecoveryPointsByLegalHold),
		},
		{
			Name:      "list_recovery_points_by_resource",
			Requires:  []capability.Requirement{capability.Need("ResourceArn", "")},
			PageKey:   "MaxResults",
			Label:     `List of recovery points of resource "{ResourceArn}"`,
			ResultKey: "RecoveryPoints",
			Execute:   call(api, awsapi.BackupAPI.ListRecoveryPointsByResource),
		},
	}

	return append(ops, b.customOperations()...)
}

func (b backupOps) customOperations() []*capability.Operation {
	planNotFound := capability.ErrorRule{Code: CodePlanNotFound, Message: `Backup plan "{BackupPlanName}" does not exist.`, Reprompt: true}
	selectionNotFound := capability.ErrorRule{
		Code:     CodeSelectionNotFound,
		Message:  `Backup selection "` + ref(selectionNameKeys) + `" does not exist in plan "{BackupPlanName}".`,
		Reprompt: true,
	}
	holdNotFound := capability.ErrorRule{Code: CodeLegalHoldNotFound, Message: `Legal hold "{LegalHoldArn}" does not exist.`, Reprompt: true}
	vaultArnNotFound := capability.ErrorRule{Code: CodeVaultNotFound, Message: `Backup vault "{BackupVaultArn}" does not exist.`, Reprompt: true}
	selectionName := capability.NeedAny("Backup selection name is missing.", selectionNameKeys...)

	ops := []*capability.Operation{
		{
			Name:      "list_backup_vaults_for_tags",
			Custom:    true,
			Requires:  backupVaultTags.requirements(),
			Label:     backupVaultTags.label("List of backup vaults"),
			ResultKey: "BackupVaultList",
			Execute:   b.vaultsForTags,
		},
		{
			Name:      "list_backup_plans_for_tags",
			Custom:    true,
			Requires:  backupPlanTags.requirements(),
			Label:     backupPlanTags.label("List of backup plans"),
			ResultKey: "BackupPlansList",
			Execute:   b.plansForTags,
		},
		{
			Name:      "list_legal_holds_for_tags",
			Custom:    true,
			Requires:  legalHoldTags.requirements(),
			Label:     legalHoldTags.label("List of legal holds"),
			ResultKey: "LegalHolds",
			Execute:   b.legalHoldsForTags,
		},
		{
			Name:      "list_backup_selections_using_backup_plan_name",
			Custom:    true,
			Requires:  []capability.Requirement{capability.Need("BackupPlanName", "")},
			Label:     `List of backup selections of plan "{BackupPlanName}"`,
			ResultKey: "BackupSelectionsList",
			Errors:    []capability.ErrorRule{planNotFound},
			Execute:   b.selectionsUsingPlanName,
		},
		{
			Name:     "get_backup_vault_using_name",
			Custom:   true,
			Requires: []capability.Requirement{capability.Need("BackupVaultName", "")},
			Label:    `Backup vault "{BackupVaultName}"`,
			Errors:   []capability.ErrorRule{vaultNotFound},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				return result(b.describeVault(ctx, req.Region, req.Payload.String("BackupVaultName")))
			},
		},
		{
			Name:     "get_backup_vault_using_arn",
			Custom:   true,
			Requires: []capability.Requirement{capability.Need("BackupVaultArn", "")},
			Label:    `Backup vault "{BackupVaultArn}"`,
			Errors:   []capability.ErrorRule{vaultArnNotFound},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				name, err := b.vaultNameForArn(ctx, req.Region, req.Payload.String("BackupVaultArn"))
				if err != nil {
					return nil, err
				}
				return result(b.describeVault(ctx, req.Region, name))
			},
		},
		{
			Name:     "get_backup_plan_using_name",
			Custom:   true,
			Requires: []capability.Requirement{capability.Need("BackupPlanName", "")},
			Label:    `Backup plan "{BackupPlanName}"`,
			Errors:   []capability.ErrorRule{planNotFound},
			Execute:  b.planUsingName,
		},
		{
			Name:   "get_backup_selection_using_name",
			Custom: true,
			Requires: []capability.Requirement{
				capability.Need("BackupPlanName", ""),
				selectionName,
			},
			Label:     `Backup selection "` + ref(selectionNameKeys) + `" of plan "{BackupPlanName}"`,
			ResultKey: "BackupSelection",
			Errors:    []capability.ErrorRule{planNotFound, selectionNotFound},
			Execute:   b.selectionUsingName,
		},
		{
			Name:        "delete_backup_vault_using_name",
			Description: "Delete an empty backup vault. Vaults holding recovery points are kept.",
			Custom:      true,
			Requires:    []capability.Requirement{capability.Need("BackupVaultName", "")},
			Label:       `Backup vault "{BackupVaultName}" was deleted`,
			Errors: []capability.ErrorRule{
				vaultNotFound,
				{Code: CodeRecoveryPointsHeld, Message: `Backup vault "{BackupVaultName}" contains recovery points and was not deleted.`},
			},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				return nil, b.deleteVault(ctx, req.Region, req.Payload.String("BackupVaultName"))
			},
		},
		{
			Name:        "delete_backup_vault_using_arn",
			Description: "Delete an empty backup vault. Vaults holding recovery points are kept.",
			Custom:      true,
			Requires:    []capability.Requirement{capability.Need("BackupVaultArn", "")},
			Label:       `Backup vault "{BackupVaultArn}" was deleted`,
			Errors: []capability.ErrorRule{
				vaultArnNotFound,
				{Code: CodeRecoveryPointsHeld, Message: `Backup vault "{BackupVaultArn}" contains recovery points and was not deleted.`},
			},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				name, err := b.vaultNameForArn(ctx, req.Region, req.Payload.String("BackupVaultArn"))
				if err != nil {
					return nil, err
				}
				return nil, b.deleteVault(ctx, req.Region, name)
			},
		},
		{
			Name:        "delete_backup_plan_using_name",
			Description: "Delete a backup plan and its selections by plan name.",
			Custom:      true,
			Requires:    []capability.Requirement{capability.Need("BackupPlanName", "")},
			Label:       `Backup plan "{BackupPlanName}" was deleted`,
			Errors:      []capability.ErrorRule{planNotFound},
			Execute:     b.deletePlanUsingName,
		},
		{
			Name:   "delete_backup_selection_using_name",
			Custom: true,
			Requires: []capability.Requirement{
				capability.Need("BackupPlanName", ""),
				selectionName,
			},
			Label:   `Backup selection "` + ref(selectionNameKeys) + `" was deleted from plan "{BackupPlanName}"`,
			Errors:  []capability.ErrorRule{planNotFound, selectionNotFound},
			Execute: b.deleteSelectionUsingName,
		},
		{
			Name:     "get_legal_hold_using_arn",
			Custom:   true,
			Requires: []capability.Requirement{capability.Need("LegalHoldArn", "")},
			Label:    `Legal hold "{LegalHoldArn}"`,
			Errors:   []capability.ErrorRule{holdNotFound},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				id, err := b.legalHoldIDForArn(ctx, req.Region, req.Payload.String("LegalHoldArn"))
				if err != nil {
					return nil, err
				}
				return result(invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.GetLegalHold,
					&backup.GetLegalHoldInput{LegalHoldId: aws.String(id)}))
			},
		},
		{
			Name:   "cancel_legal_hold_using_arn",
			Custom: true,
			Requires: []capability.Requirement{
				capability.Need("LegalHoldArn", ""),
				capability.Need("CancelDescription", "A reason is required to cancel legal hold \"{LegalHoldArn}\"."),
			},
			Label:  `Legal hold "{LegalHoldArn}" was canceled`,
			Errors: []capability.ErrorRule{holdNotFound},
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				id, err := b.legalHoldIDForArn(ctx, req.Region, req.Payload.String("LegalHoldArn"))
				if err != nil {
					return nil, err
				}
				return result(invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.CancelLegalHold,
					&backup.CancelLegalHoldInput{
						LegalHoldId:       aws.String(id),
						CancelDescription: aws.String(req.Payload.String("CancelDescription")),
					}))
			},
		},
	}
	// Each Execute resolves names or filters before the API call, so its payload is
	// not one a repair could correct.
	for _, op := range ops {
		op.NoRepair = true
	}
	return ops
}

// --- composite handlers ---

func (b backupOps) vaultPrecheck(ctx context.Context, t *capability.Turn) error {
	name := t.Request.Payload.String("BackupVaultName")
	exists, err := b.vaultExists(ctx, t.Request.Region, name)
	if err != nil {
		return err
	}
	if exists {
		t.Say(fmt.Sprintf("Backup vault \"%s\" already exists.", name))
		return nil
	}
	return capability.DefaultHandle(ctx, t)
}

func (b backupOps) createPlan(ctx context.Context, t *capability.Turn, createVault *capability.Operation) error {
	name := t.Request.Payload.String("BackupPlan.BackupPlanName")
	_, err := b.planByName(ctx, t.Request.Region, name)
	if err == nil {
		t.Say(fmt.Sprintf("Backup plan \"%s\" already exists.", name))
		return nil
	}
	if capability.ErrorCode(err) != CodePlanNotFound {
		return err
	}
	if ok, err := b.ensureVaults(ctx, t, createVault); err != nil || !ok {
		return err
	}
	return capability.DefaultHandle(ctx, t)
}

func (b backupOps) updatePlan(ctx context.Context, t *capability.Turn, createVault *capability.Operation) error {
	name := t.Request.Payload.String("BackupPlan.BackupPlanName")
	_, err := b.planByName(ctx, t.Request.Region, name)
	if capability.ErrorCode(err) == CodePlanNotFound {
		t.Reprompt(fmt.Sprintf("Backup plan \"%s\" does not exist.", name))
		return nil
	}
	if err != nil {
		return err
	}
	if ok, err := b.ensureVaults(ctx, t, createVault); err != nil || !ok {
		return err
	}
	return capability.DefaultHandle(ctx, t)
}

// ensureVaults creates the target vaults of the plan's rules that do not exist yet.
// It returns false when a creation did not succeed.
func (b backupOps) ensureVaults(ctx context.Context, t *capability.Turn, createVault *capability.Operation) (bool, error) {
	seen := map[string]bool{}
	for _, r := range t.Request.Payload.List("BackupPlan.Rules") {
		rule, _ := r.(map[string]any)
		name := capability.Payload(rule).String("TargetBackupVaultName")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		exists, err := b.vaultExists(ctx, t.Request.Region, name)
		if err != nil {
			return false, err
		}
		if exists {
			continue
		}
		out := t.CallOp(ctx, createVault, capability.Payload{"BackupVaultName": name})
		if !t.Settle(createVault, out) {
			return false, nil
		}
		t.Say(fmt.Sprintf("Backup vault \"%s\" was created for the plan.", name))
	}
	return true, nil
}

func (b backupOps) selectionPrecheck(ctx context.Context, t *capability.Turn) error {
	planID := t.Request.Payload.String("BackupPlanId")
	name := t.Request.Payload.String("BackupSelection.SelectionName")
	selections, err := b.selections(ctx, t.Request.Region, planID)
	if err != nil {
		return err
	}
	for _, s := range selections {
		if aws.ToString(s.SelectionName) == name {
			t.Say(fmt.Sprintf("Backup selection \"%s\" already exists in plan \"%s\".", name, planID))
			return nil
		}
	}
	return capability.DefaultHandle(ctx, t)
}

func (b backupOps) deletePlan(ctx context.Context, t *capability.Turn, deleteSelection *capability.Operation) error {
	planID := t.Request.Payload.String("BackupPlanId")
	selections, err := b.selections(ctx, t.Request.Region, planID)
	if err != nil {
		return err
	}
	for _, s := range selections {
		out := t.CallOp(ctx, deleteSelection, capability.Payload{
			"BackupPlanId": planID,
			"SelectionId":  aws.ToString(s.SelectionId),
		})
		if !t.Settle(deleteSelection, out) {
			return nil
		}
		t.Say(fmt.Sprintf("Backup selection \"%s\" was deleted.", aws.ToString(s.SelectionName)))
	}
	return capability.DefaultHandle(ctx, t)
}

// --- custom executes ---

func (b backupOps) vaultsForTags(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	filter := backupVaultTags.filter(req.Payload)
	vaults, err := b.vaults(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	matched := []types.BackupVaultListMember{}
	for _, v := range vaults {
		ok, err := b.tagged(ctx, req.Region, aws.ToString(v.BackupVaultArn), filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, v)
		}
	}
	return result(map[string]any{"BackupVaultList": matched}, nil)
}

func (b backupOps) plansForTags(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	filter := backupPlanTags.filter(req.Payload)
	plans, err := b.plans(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	matched := []types.BackupPlansListMember{}
	for _, p := range plans {
		ok, err := b.tagged(ctx, req.Region, aws.ToString(p.BackupPlanArn), filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return result(map[string]any{"BackupPlansList": matched}, nil)
}

func (b backupOps) legalHoldsForTags(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	filter := legalHoldTags.filter(req.Payload)
	holds, err := b.legalHolds(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	matched := []types.LegalHold{}
	for _, h := range holds {
		ok, err := b.tagged(ctx, req.Region, aws.ToString(h.LegalHoldArn), filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, h)
		}
	}
	return result(map[string]any{"LegalHolds": matched}, nil)
}

func (b backupOps) selectionsUsingPlanName(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	plan, err := b.planByName(ctx, req.Region, req.Payload.String("BackupPlanName"))
	if err != nil {
		return nil, err
	}
	selections, err := b.selections(ctx, req.Region, aws.ToString(plan.BackupPlanId))
	if err != nil {
		return nil, err
	}
	return result(map[string]any{"BackupSelectionsList": selections}, nil)
}

func (b backupOps) planUsingName(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	plan, err := b.planByName(ctx, req.Region, req.Payload.String("BackupPlanName"))
	if err != nil {
		return nil, err
	}
	return result(invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.GetBackupPlan,
		&backup.GetBackupPlanInput{BackupPlanId: plan.BackupPlanId}))
}

func (b backupOps) selectionUsingName(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	plan, sel, err := b.selectionByName(ctx, req)
	if err != nil {
		return nil, err
	}
	return result(invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.GetBackupSelection,
		&backup.GetBackupSelectionInput{BackupPlanId: plan.BackupPlanId, SelectionId: sel.SelectionId}))
}

func (b backupOps) deletePlanUsingName(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	plan, err := b.planByName(ctx, req.Region, req.Payload.String("BackupPlanName"))
	if err != nil {
		return nil, err
	}
	selections, err := b.selections(ctx, req.Region, aws.ToString(plan.BackupPlanId))
	if err != nil {
		return nil, err
	}
	for _, s := range selections {
		_, err := invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.DeleteBackupSelection,
			&backup.DeleteBackupSelectionInput{BackupPlanId: plan.BackupPlanId, SelectionId: s.SelectionId})
		if err != nil {
			return nil, err
		}
	}
	return result(invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.DeleteBackupPlan,
		&backup.DeleteBackupPlanInput{BackupPlanId: plan.BackupPlanId}))
}

func (b backupOps) deleteSelectionUsingName(ctx context.Context, req *capability.Request) (capability.Payload, error) {
	plan, sel, err := b.selectionByName(ctx, req)
	if err != nil {
		return nil, err
	}
	_, err = invoke(ctx, req.Region, b.c.Backup, awsapi.BackupAPI.DeleteBackupSelection,
		&backup.DeleteBackupSelectionInput{BackupPlanId: plan.BackupPlanId, SelectionId: sel.SelectionId})
	return nil, err
}

// --- inventory lookups ---

func (b backupOps) vaults(ctx context.Context, region string) ([]types.BackupVaultListMember, error) {
	client, err := b.c.Backup(ctx, region)
	if err != nil {
		return nil, err
	}
	var out []types.BackupVaultListMember
	pages := backup.NewListBackupVaultsPaginator(client, &backup.ListBackupVaultsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.BackupVaultList...)
	}
	return out, nil
}

func (b backupOps) vaultExists(ctx context.Context, region, name string) (bool, error) {
	vaults, err := b.vaults(ctx, region)
	if err != nil {
		return false, err
	}
	for _, v := range vaults {
		if aws.ToString(v.BackupVaultName) == name {
			return true, nil
		}
	}
	return false, nil
}

func (b backupOps) vaultNameForArn(ctx context.Context, region, arn string) (string, error) {
	vaults, err := b.vaults(ctx, region)
	if err != nil {
		return "", err
	}
	for _, v := range vaults {
		if aws.ToString(v.BackupVaultArn) == arn {
			return aws.ToString(v.BackupVaultName), nil
		}
	}
	return "", notFound(CodeVaultNotFound, "no backup vault with ARN %s", arn)
}

func (b backupOps) describeVault(ctx context.Context, region, name string) (*backup.DescribeBackupVaultOutput, error) {
	return invoke(ctx, region, b.c.Backup, awsapi.BackupAPI.DescribeBackupVault,
		&backup.DescribeBackupVaultInput{BackupVaultName: aws.String(name)})
}

// deleteVault refuses to delete a vault that still holds recovery points.
func (b backupOps) deleteVault(ctx context.Context, region, name string) error {
	points, err := invoke(ctx, region, b.c.Backup, awsapi.BackupAPI.ListRecoveryPointsByBackupVault,
		&backup.ListRecoveryPointsByBackupVaultInput{BackupVaultName: aws.String(name), MaxResults: aws.Int32(1)})
	if err != nil {
		return err
	}
	if len(points.RecoveryPoints) > 0 {
		return capability.NewError(CodeRecoveryPointsHeld, fmt.Sprintf("backup vault %s contains recovery points", name))
	}
	_, err = invoke(ctx, region, b.c.Backup, awsapi.BackupAPI.DeleteBackupVault,
		&backup.DeleteBackupVaultInput{BackupVaultName: aws.String(name)})
	return err
}

func (b backupOps) plans(ctx context.Context, region string) ([]types.BackupPlansListMember, error) {
	client, err := b.c.Backup(ctx, region)
	if err != nil {
		return nil, err
	}
	var out []types.BackupPlansListMember
	pages := backup.NewListBackupPlansPaginator(client, &backup.ListBackupPlansInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.BackupPlansList...)
	}
	return out, nil
}

func (b backupOps) planByName(ctx context.Context, region, name string) (*types.BackupPlansListMember, error) {
	plans, err := b.plans(ctx, region)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if aws.ToString(plans[i].BackupPlanName) == name {
			return &plans[i], nil
		}
	}
	return nil, notFound(CodePlanNotFound, "no backup plan named %s", name)
}

func (b backupOps) selections(ctx context.Context, region, planID string) ([]types.BackupSelectionsListMember, error) {
	client, err := b.c.Backup(ctx, region)
	if err != nil {
		return nil, err
	}
	out := []types.BackupSelectionsListMember{}
	pages := backup.NewListBackupSelectionsPaginator(client, &backup.ListBackupSelectionsInput{BackupPlanId: aws.String(planID)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.BackupSelectionsList...)
	}
	return out, nil
}

func (b backupOps) selectionByName(ctx context.Context, req *capability.Request) (*types.BackupPlansListMember, *types.BackupSelectionsListMember, error) {
	plan, err := b.planByName(ctx, req.Region, req.Payload.String("BackupPlanName"))
	if err != nil {
		return nil, nil, err
	}
	name := req.Payload.FirstString(selectionNameKeys...)
	selections, err := b.selections(ctx, req.Region, aws.ToString(plan.BackupPlanId))
	if err != nil {
		return nil, nil, err
	}
	for i := range selections {
		if aws.ToString(selections[i].SelectionName) == name {
			return plan, &selections[i], nil
		}
	}
	return nil, nil, notFound(CodeSelectionNotFound, "no backup selection named %s", name)
}

func (b backupOps) legalHolds(ctx context.Context, region string) ([]types.LegalHold, error) {
	client, err := b.c.Backup(ctx, region)
	if err != nil {
		return nil, err
	}
	var out []types.LegalHold
	pages := backup.NewListLegalHoldsPaginator(client, &backup.ListLegalHoldsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.LegalHolds...)
	}
	return out, nil
}

func (b backupOps) legalHoldIDForArn(ctx context.Context, region, arn string) (string, error) {
	holds, err := b.legalHolds(ctx, region)
	if err != nil {
		return "", err
	}
	for _, h := range holds {
		if aws.ToString(h.LegalHoldArn) == arn {
			return aws.ToString(h.LegalHoldId), nil
		}
	}
	return "", notFound(CodeLegalHoldNotFound, "no legal hold with ARN %s", arn)
}

func (b backupOps) tagged(ctx context.Context, region, arn string, filter tagFilter) (bool, error) {
	out, err := invoke(ctx, region, b.c.Backup, awsapi.BackupAPI.ListTags, &backup.ListTagsInput{ResourceArn: aws.String(arn)})
	if err != nil {
		return false, err
	}
	return filter.match(out.Tags), nil
}
