package stack

const (
	DefaultResourceTagKey   = "Environment"
	DefaultResourceTagValue = "Development"

	// Redshift Serverless
	AdminSecretName     = "redshift-serverless-admin-user-secret"
	AdminUsername       = "admin"
	NamespaceName       = "lab2-namespace"
	WorkgroupName       = "lab2-workgroup"
	DatabaseName        = "lab2db"
	WorkgroupBaseRPU    = 8
	AdminPasswordLength = 16

	// Schema bootstrap
	SchemaKeyPrefix    = "redshift-sql"
	SchemaSQLFileName  = "redshift-tables.sql"
	SchemaResourceType = "Custom::RedshiftSchema"

	// MWAA
	MwaaEnvironmentName  = "lab2-mwaa"
	MwaaEnvironmentClass = "mw1.small"
	MwaaRequirementsDir  = "requirements"
	MwaaDagsPath         = "dags"
)
