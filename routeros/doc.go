/*
Package routeros talks to MikroTik RouterOS devices over their interactive
command line.

RouterOS exposes no structured management API on the devices this tool
targets: the only interface is the CLI itself.  The package therefore has
three layers.  Session abstracts an interactive transport (SSH or Telnet)
which runs one command at a time and hands back the raw textual reply.
The parse functions recover structured records (interfaces, IPv6 addresses,
IPv6 routes, tunnel sessions, ping samples) from that text on a best-effort
basis: malformed lines are skipped and a missing table yields an empty
result, never an error.  Device combines the two, answering state queries
("does this address exist on that interface") by issuing exactly one command
per call and parsing the reply.

All records are ephemeral value objects rebuilt on every query.  The device
itself is the only source of truth; nothing parsed here is cached.
*/
package routeros
