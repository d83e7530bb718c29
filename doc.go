/*
Package ddns keeps a single DNS A record pointed at the host's public IP address.

Usage will always start with [ddns.New],
which returns a [Client] for one fully-qualified domain name.
New requires a DNS provider ([UsingRoute53], [UsingCloudflare] or any [DNSAPI])
and a [Resolver] that reports the current address.

Each call to [Client.Reconcile] compares the published record with the current address,
submits an UPSERT when they differ and waits up to a minute for the provider to report the change INSYNC.
[RunDaemon] repeats that on a fixed interval.
*/
package ddns
