package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsmwaa"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// MwaaProps configures the Airflow environment.
type MwaaProps struct {
	Vpc        awsec2.IVpc
	DagsBucket awss3.IBucket
	// RequirementsDir is deployed under requirements/. Defaults to
	// assets/requirements.
	RequirementsDir string
}

// Mwaa is a Managed Workflows for Apache Airflow environment running in the
// isolated subnets of the VPC.
type Mwaa struct {
	constructs.Construct
	ExecutionRole awsiam.Role
	SecurityGroup awsec2.SecurityGroup
	Environment   awsmwaa.CfnEnvironment
}

// NewMwaa creates the MWAA environment and the networking and IAM it depends
// on.
func NewMwaa(scope constructs.Construct, id string, props *MwaaProps) *Mwaa {
	construct := constructs.NewConstruct(scope, &id)

	requirementsDir := props.RequirementsDir
	if requirementsDir == "" {
		requirementsDir = assetDir(MwaaRequirementsDir)
	}

	role := createMwaaExecutionRole(construct)
	sg := createMwaaNetworking(construct, props.Vpc)

	requirements := awss3deployment.NewBucketDeployment(construct, jsii.String("DeployRequirements"), &awss3deployment.BucketDeploymentProps{
		Sources:              &[]awss3deployment.ISource{awss3deployment.Source_Asset(jsii.String(requirementsDir), nil)},
		DestinationBucket:    props.DagsBucket,
		DestinationKeyPrefix: jsii.String(MwaaRequirementsDir),
	})

	subnetIDs := []*string{}
	for _, subnet := range *props.Vpc.IsolatedSubnets() {
		subnetIDs = append(subnetIDs, subnet.SubnetId())
	}

	env := awsmwaa.NewCfnEnvironment(construct, jsii.String("MWAAEnvironment"), &awsmwaa.CfnEnvironmentProps{
		Name:               jsii.String(MwaaEnvironmentName),
		EnvironmentClass:   jsii.String(MwaaEnvironmentClass),
		SourceBucketArn:    props.DagsBucket.BucketArn(),
		RequirementsS3Path: jsii.String(MwaaRequirementsDir + "/requirements.txt"),
		DagS3Path:          jsii.String(MwaaDagsPath),
		NetworkConfiguration: &awsmwaa.CfnEnvironment_NetworkConfigurationProperty{
			SecurityGroupIds: &[]*string{sg.SecurityGroupId()},
			SubnetIds:        &subnetIDs,
		},
		MinWorkers:          jsii.Number(1),
		MaxWorkers:          jsii.Number(3),
		MaxWebservers:       jsii.Number(2),
		WebserverAccessMode: jsii.String("PUBLIC_ONLY"),
		ExecutionRoleArn:    role.RoleArn(),
		LoggingConfiguration: &awsmwaa.CfnEnvironment_LoggingConfigurationProperty{
			DagProcessingLogs: infoLogging(),
			SchedulerLogs:     infoLogging(),
			TaskLogs:          infoLogging(),
			WebserverLogs:     infoLogging(),
			WorkerLogs:        infoLogging(),
		},
	})
	awscdk.Tags_Of(env).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	// MWAA validates requirements.txt on create.
	env.Node().AddDependency(requirements)
	env.Node().AddDependency(role)

	return &Mwaa{
		Construct:     construct,
		ExecutionRole: role,
		SecurityGroup: sg,
		Environment:   env,
	}
}

func infoLogging() *awsmwaa.CfnEnvironment_ModuleLoggingConfigurationProperty {
	return &awsmwaa.CfnEnvironment_ModuleLoggingConfigurationProperty{
		Enabled:  jsii.Bool(true),
		LogLevel: jsii.String("INFO"),
	}
}

// createMwaaExecutionRole creates the role assumed by the environment and the
// web login policy attached to it
func createMwaaExecutionRole(scope constructs.Construct) awsiam.Role {
	webLoginPolicy := awsiam.NewPolicy(scope, jsii.String("MWAAWebLoginPolicy"), &awsiam.PolicyProps{
		PolicyName: jsii.String("Lab2MWAAWebLoginPolicy"),
		Statements: &[]awsiam.PolicyStatement{
			awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
				Effect:    awsiam.Effect_ALLOW,
				Actions:   jsii.Strings("airflow:CreateWebLoginToken"),
				Resources: jsii.Strings("arn:aws:airflow:*:*:role/*/*"),
			}),
		},
	})

	role := awsiam.NewRole(scope, jsii.String("MWAAExecutionRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewCompositePrincipal(
			awsiam.NewServicePrincipal(jsii.String("airflow-env.amazonaws.com"), nil),
			awsiam.NewServicePrincipal(jsii.String("airflow.amazonaws.com"), nil),
		),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonS3FullAccess")),
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("CloudWatchLogsFullAccess")),
		},
		RoleName: jsii.String("Lab2MWAAExecutionRole"),
	})
	awscdk.Tags_Of(role).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	webLoginPolicy.AttachToRole(role)
	return role
}

// createMwaaNetworking creates the environment security group and the VPC
// endpoints MWAA needs in subnets without a NAT gateway.
func createMwaaNetworking(scope constructs.Construct, vpc awsec2.IVpc) awsec2.SecurityGroup {
	sg := awsec2.NewSecurityGroup(scope, jsii.String("MWAASecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:              vpc,
		Description:      jsii.String("Security group for MWAA environment"),
		AllowAllOutbound: jsii.Bool(true),
	})
	// Airflow components talk to each other through the environment SG.
	sg.AddIngressRule(sg, awsec2.Port_AllTraffic(), jsii.String("MWAA self-referencing rule"), nil)
	awscdk.Tags_Of(sg).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)

	isolated := &awsec2.SubnetSelection{SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED}

	awsec2.NewGatewayVpcEndpoint(scope, jsii.String("MWAAS3Endpoint"), &awsec2.GatewayVpcEndpointProps{
		Vpc:     vpc,
		Service: awsec2.GatewayVpcEndpointAwsService_S3(),
		Subnets: &[]*awsec2.SubnetSelection{isolated},
	})

	// Services MWAA reaches without internet access.
	endpoints := []struct {
		name    string
		service awsec2.InterfaceVpcEndpointAwsService
	}{
		{"monitoring", awsec2.InterfaceVpcEndpointAwsService_CLOUDWATCH_MONITORING()},
		{"logs", awsec2.InterfaceVpcEndpointAwsService_CLOUDWATCH_LOGS()},
		{"sqs", awsec2.InterfaceVpcEndpointAwsService_SQS()},
		{"kms", awsec2.InterfaceVpcEndpointAwsService_KMS()},
	}
	for _, e := range endpoints {
		awsec2.NewInterfaceVpcEndpoint(scope, jsii.String(fmt.Sprintf("MWAAEndpoint%s", e.name)), &awsec2.InterfaceVpcEndpointProps{
			Vpc:               vpc,
			Service:           e.service,
			Subnets:           isolated,
			SecurityGroups:    &[]awsec2.ISecurityGroup{sg},
			PrivateDnsEnabled: jsii.Bool(true),
		})
	}

	return sg
}
