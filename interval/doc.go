/*Package interval implements the genomic-coordinate helpers shared by the
  epivariation caller: the position type, natural chromosome ordering,
  samtools-style region strings, and name-keyed interval-union masks loaded
  from BED files.
  (Note the 'union'.  Overlapping mask intervals are merged, not tracked
  separately.)
  It assumes every position fits in a PosType, which is currently defined as
  int32; array manifests never come close.
*/
package interval
