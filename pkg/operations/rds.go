package operations

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
)

const serviceRDS = "rds"

func rdsOperations(c Clients) []*capability.Operation {
	api := c.RDS
	invalidArn := func(field string) capability.ErrorRule {
		return capability.ErrorRule{Code: "InvalidParameterValue", Message: `The value "{` + field + `}" is not a valid ARN or identifier.`}
	}

	return []*capability.Operation{
		{
			Name:      "describe_db_clusters",
			Custom:    true,
			PageKey:   "MaxRecords",
			Label:     "List of DB clusters",
			ResultKey: "DBClusters",
			Execute:   call(api, awsapi.RDSAPI.DescribeDBClusters),
		},
		{
			Name:      "describe_db_instances",
			Custom:    true,
			PageKey:   "MaxRecords",
			Label:     "List of DB instances",
			ResultKey: "DBInstances",
			Execute:   call(api, awsapi.RDSAPI.DescribeDBInstances),
		},
		{
			Name:      "describe_db_cluster_automated_backups",
			Custom:    true,
			PageKey:   "MaxRecords",
			Label:     "List of DB cluster automated backups",
			ResultKey: "DBClusterAutomatedBackups",
			Execute:   call(api, awsapi.RDSAPI.DescribeDBClusterAutomatedBackups),
		},
		{
			Name:      "describe_db_instance_automated_backups",
			Custom:    true,
			PageKey:   "MaxRecords",
			Label:     "List of DB instance automated backups",
			ResultKey: "DBInstanceAutomatedBackups",
			Execute:   call(api, awsapi.RDSAPI.DescribeDBInstanceAutomatedBackups),
		},
		{
			Name:      "start_db_instance_automated_backups_replication",
			Custom:    true,
			Requires:  []capability.Requirement{capability.Need("SourceDBInstanceArn", "")},
			Label:     `Replication of automated backups of "{SourceDBInstanceArn}" was started`,
			ResultKey: "DBInstanceAutomatedBackup",
			Errors: []capability.ErrorRule{
				invalidArn("SourceDBInstanceArn"),
				{Code: "DBInstanceNotFound", Message: `DB instance "{SourceDBInstanceArn}" was not found.`},
			},
			Execute: call(api, awsapi.RDSAPI.StartDBInstanceAutomatedBackupsReplication),
		},
		{
			Name:      "stop_db_instance_automated_backups_replication",
			Custom:    true,
			Requires:  []capability.Requirement{capability.Need("SourceDBInstanceArn", "")},
			Label:     `Replication of automated backups of "{SourceDBInstanceArn}" was stopped`,
			ResultKey: "DBInstanceAutomatedBackup",
			Errors: []capability.ErrorRule{
				invalidArn("SourceDBInstanceArn"),
				{Code: "DBInstanceNotFound", Message: `DB instance "{SourceDBInstanceArn}" was not found.`},
			},
			Execute: call(api, awsapi.RDSAPI.StopDBInstanceAutomatedBackupsReplication),
		},
		{
			Name:      "delete_db_cluster_automated_backup",
			Custom:    true,
			Requires:  []capability.Requirement{capability.Need("DbClusterResourceId", "")},
			Label:     `Automated backup of DB cluster "{DbClusterResourceId}" was deleted`,
			ResultKey: "DBClusterAutomatedBackup",
			Errors:    []capability.ErrorRule{invalidArn("DbClusterResourceId")},
			Execute:   call(api, awsapi.RDSAPI.DeleteDBClusterAutomatedBackup),
		},
		{
			Name:   "delete_db_instance_automated_backup",
			Custom: true,
			Requires: []capability.Requirement{capability.NeedAny(
				"DbiResourceId or DBInstanceAutomatedBackupsArn is required to delete an automated backup.",
				"DbiResourceId", "DBInstanceAutomatedBackupsArn")},
			Label:     "Automated backup of DB instance was deleted",
			ResultKey: "DBInstanceAutomatedBackup",
			Errors: []capability.ErrorRule{{
				Code:    "InvalidParameterValue",
				Message: `The automated backup "{DbiResourceId}{DBInstanceAutomatedBackupsArn}" is not a valid identifier.`,
			}},
			Execute: call(api, awsapi.RDSAPI.DeleteDBInstanceAutomatedBackup),
		},
		{
			Name:      "describe_db_clusters_for_cluster_names",
			Custom:    true,
			NoRepair:  true,
			Requires:  []capability.Requirement{capability.Need("ClusterNames", "Cluster names are missing. Provide them as a comma separated list.")},
			Label:     `DB clusters "{ClusterNames}"`,
			ResultKey: "DBClusters",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				clusters, err := dbClusters(ctx, c, req.Region, rdsFilter("db-cluster-id", req.Payload.Strings("ClusterNames")))
				return result(map[string]any{"DBClusters": clusters}, err)
			},
		},
		{
			Name:      "describe_db_clusters_for_cluster_tags",
			Custom:    true,
			NoRepair:  true,
			Requires:  clusterTags.requirements(),
			Label:     clusterTags.label("DB clusters"),
			ResultKey: "DBClusters",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				clusters, err := dbClusters(ctx, c, req.Region, nil)
				if err != nil {
					return nil, err
				}
				f := clusterTags.filter(req.Payload)
				matched := []types.DBCluster{}
				for _, cl := range clusters {
					if f.match(rdsTags(cl.TagList)) {
						matched = append(matched, cl)
					}
				}
				return result(map[string]any{"DBClusters": matched}, nil)
			},
		},
		{
			Name:      "describe_db_instances_for_instance_names",
			Custom:    true,
			NoRepair:  true,
			Requires:  []capability.Requirement{capability.Need("InstanceNames", "Instance names are missing. Provide them as a comma separated list.")},
			Label:     `DB instances "{InstanceNames}"`,
			ResultKey: "DBInstances",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				instances, err := dbInstances(ctx, c, req.Region, rdsFilter("db-instance-id", req.Payload.Strings("InstanceNames")))
				return result(map[string]any{"DBInstances": instances}, err)
			},
		},
		{
			Name:      "describe_db_instances_for_instance_tags",
			Custom:    true,
			NoRepair:  true,
			Requires:  instanceTags.requirements(),
			Label:     instanceTags.label("DB instances"),
			ResultKey: "DBInstances",
			Execute: func(ctx context.Context, req *capability.Request) (capability.Payload, error) {
				instances, err := dbInstances(ctx, c, req.Region, nil)
				if err != nil {
					return nil, err
				}
				f := instanceTags.filter(req.Payload)
				matched := []types.DBInstance{}
				for _, in := range instances {
					if f.match(rdsTags(in.TagList)) {
						matched = append(matched, in)
					}
				}
				return result(map[string]any{"DBInstances": matched}, nil)
			},
		},
	}
}

func rdsFilter(name string, values []string) []types.Filter {
	return []types.Filter{{Name: aws.String(name), Values: values}}
}

func dbClusters(ctx context.Context, c Clients, region string, filters []types.Filter) ([]types.DBCluster, error) {
	client, err := c.RDS(ctx, region)
	if err != nil {
		return nil, err
	}
	out := []types.DBCluster{}
	pages := rds.NewDescribeDBClustersPaginator(client, &rds.DescribeDBClustersInput{Filters: filters})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.DBClusters...)
	}
	return out, nil
}

func dbInstances(ctx context.Context, c Clients, region string, filters []types.Filter) ([]types.DBInstance, error) {
	client, err := c.RDS(ctx, region)
	if err != nil {
		return nil, err
	}
	out := []types.DBInstance{}
	pages := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{Filters: filters})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.DBInstances...)
	}
	return out, nil
}

func rdsTags(list []types.Tag) map[string]string {
	tags := make(map[string]string, len(list))
	for _, t := range list {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}
